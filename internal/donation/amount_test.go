package donation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToBaseUnitsTruncates(t *testing.T) {
	// 1.234567 USD at 6 decimals is exactly 1234567 base units; anything
	// past the sixth decimal must be cut off, not rounded up.
	assert.Equal(t, uint64(1234567), ToBaseUnits(1.234567, USDCDecimals))
	assert.Equal(t, uint64(1234567), ToBaseUnits(1.2345679, USDCDecimals))
}

func TestToBaseUnitsWholeAmounts(t *testing.T) {
	assert.Equal(t, uint64(10000000), ToBaseUnits(10, USDCDecimals))
	assert.Equal(t, uint64(25000000), ToBaseUnits(25, USDCDecimals))
}

func TestToBaseUnitsSubUnitAmounts(t *testing.T) {
	// Less than one base unit truncates to zero.
	assert.Equal(t, uint64(0), ToBaseUnits(0.0000001, USDCDecimals))
}

func TestToBaseUnitsNonPositive(t *testing.T) {
	assert.Equal(t, uint64(0), ToBaseUnits(0, USDCDecimals))
	assert.Equal(t, uint64(0), ToBaseUnits(-5, USDCDecimals))
}
