package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthTestApp(t *testing.T) *fiber.App {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	app := fiber.New()
	app.Post("/guarded", WalletAuth(log), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"wallet": CallerWallet(c)})
	})
	return app
}

func signedRequestAt(t *testing.T, key solana.PrivateKey, body []byte, signedAt time.Time) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(signedAt.Unix(), 10)
	sig, err := key.Sign(SigningMessage(fiber.MethodPost, "/guarded", ts, body))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, "/guarded", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Wallet", key.PublicKey().String())
	req.Header.Set("X-Signature", sig.String())
	req.Header.Set("X-Timestamp", ts)
	return req
}

func signedRequest(t *testing.T, key solana.PrivateKey, body []byte) *http.Request {
	t.Helper()
	return signedRequestAt(t, key, body, time.Now())
}

func TestWalletAuthAcceptsValidSignature(t *testing.T) {
	app := newAuthTestApp(t)
	key := solana.NewWallet().PrivateKey

	resp, err := app.Test(signedRequest(t, key, []byte(`{"amount":10}`)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWalletAuthRejectsMissingHeaders(t *testing.T) {
	app := newAuthTestApp(t)

	req, err := http.NewRequest(http.MethodPost, "/guarded", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWalletAuthRejectsTamperedBody(t *testing.T) {
	app := newAuthTestApp(t)
	key := solana.NewWallet().PrivateKey

	req := signedRequest(t, key, []byte(`{"amount":10}`))
	// Replace the body after signing; the signature no longer matches.
	req.Body = http.NoBody
	req.ContentLength = 0

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWalletAuthRejectsStaleSignature(t *testing.T) {
	app := newAuthTestApp(t)
	key := solana.NewWallet().PrivateKey

	// A captured request replayed after the window has closed.
	req := signedRequestAt(t, key, []byte(`{"amount":10}`), time.Now().Add(-10*time.Minute))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWalletAuthRejectsTamperedTimestamp(t *testing.T) {
	app := newAuthTestApp(t)
	key := solana.NewWallet().PrivateKey

	// Refreshing the timestamp without re-signing must not revive an old
	// signature.
	req := signedRequestAt(t, key, []byte(`{"amount":10}`), time.Now().Add(-10*time.Minute))
	req.Header.Set("X-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWalletAuthRejectsWrongKey(t *testing.T) {
	app := newAuthTestApp(t)
	signer := solana.NewWallet().PrivateKey
	imposter := solana.NewWallet().PublicKey()

	body := []byte(`{"amount":10}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := signer.Sign(SigningMessage(fiber.MethodPost, "/guarded", ts, body))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, "/guarded", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Wallet", imposter.String())
	req.Header.Set("X-Signature", sig.String())
	req.Header.Set("X-Timestamp", ts)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
