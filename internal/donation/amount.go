package donation

import "math"

// USDCDecimals is the decimal scale of the USDC mint.
const USDCDecimals = 6

// ToBaseUnits converts a USD amount to the token's integer base units.
// Fractional base units are truncated, never rounded up, so a donor is
// never charged more than the amount they typed.
func ToBaseUnits(amountUSD float64, decimals int) uint64 {
	if amountUSD <= 0 {
		return 0
	}
	return uint64(math.Trunc(amountUSD * math.Pow(10, float64(decimals))))
}
