package middleware

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// WalletLocal is the locals key under which the verified caller wallet
// address is stored.
const WalletLocal = "wallet"

// signatureMaxAge bounds how far a signed timestamp may sit from server
// time, in either direction, before the signature is rejected.
const signatureMaxAge = 5 * time.Minute

// SigningMessage is the byte string a caller must sign to authorize a
// request: method, path, unix-seconds timestamp, and the SHA-256 of the
// body, newline separated. Binding the body hash keeps a captured signature
// from authorizing a different payload; binding the timestamp keeps it from
// being replayed once signatureMaxAge has passed.
func SigningMessage(method, path, timestamp string, body []byte) []byte {
	sum := sha256.Sum256(body)
	return []byte(fmt.Sprintf("%s\n%s\n%s\n%x", method, path, timestamp, sum))
}

// WalletAuth verifies that the request was signed by the wallet it claims
// to come from. Callers send their base58 public key in X-Wallet, the unix
// seconds at which they signed in X-Timestamp, and the base58 ed25519
// signature of SigningMessage in X-Signature. Solana keys are raw ed25519
// keys, so verification needs nothing beyond the standard primitive. On
// success the verified address is placed in locals.
func WalletAuth(log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		walletHeader := c.Get("X-Wallet")
		sigHeader := c.Get("X-Signature")
		tsHeader := c.Get("X-Timestamp")
		if walletHeader == "" || sigHeader == "" || tsHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Wallet not connected",
			})
		}

		ts, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid timestamp",
			})
		}
		if age := time.Since(time.Unix(ts, 0)); age > signatureMaxAge || age < -signatureMaxAge {
			log.WithFields(logrus.Fields{
				"wallet":    walletHeader,
				"timestamp": ts,
			}).Warn("Request signature outside the accepted time window")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Signature expired",
			})
		}

		pub, err := solana.PublicKeyFromBase58(walletHeader)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid wallet address",
			})
		}
		sig, err := solana.SignatureFromBase58(sigHeader)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid signature",
			})
		}

		msg := SigningMessage(c.Method(), c.Path(), tsHeader, c.Body())
		if !ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:]) {
			log.WithFields(logrus.Fields{
				"wallet": walletHeader,
				"uri":    c.OriginalURL(),
			}).Warn("Request signature verification failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Signature verification failed",
			})
		}

		c.Locals(WalletLocal, pub.String())
		return c.Next()
	}
}

// CallerWallet returns the verified wallet address set by WalletAuth, or an
// empty string on routes that skipped it.
func CallerWallet(c *fiber.Ctx) string {
	if w, ok := c.Locals(WalletLocal).(string); ok {
		return w
	}
	return ""
}
