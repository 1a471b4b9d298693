// Package signature computes and verifies the keyed digests exchanged with the
// payment gateway: the integrity signature bound to a prepared intent and the
// checksum carried by webhook events.
//
// Both are hex-encoded SHA-256 over a concatenation that ends in a secret
// only the server and the gateway hold. Comparisons never short-circuit.
package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// DigestLen is the length of every hex digest produced here.
const DigestLen = sha256.Size * 2

type Engine struct {
	integritySecret string
}

func NewEngine(integritySecret string) *Engine {
	return &Engine{integritySecret: integritySecret}
}

// Sign returns the integrity signature for an intent. expiration is the
// optional ISO-8601 expiration the widget was given; pass "" when unused.
func (e *Engine) Sign(reference string, amountInCents int64, currency, expiration string) string {
	var b strings.Builder
	b.WriteString(reference)
	b.WriteString(strconv.FormatInt(amountInCents, 10))
	b.WriteString(currency)
	b.WriteString(expiration)
	b.WriteString(e.integritySecret)
	return digest(b.String())
}

// Verify recomputes the signature and compares it in constant time.
// Malformed digests are rejected before any comparison.
func (e *Engine) Verify(got, reference string, amountInCents int64, currency, expiration string) bool {
	if !WellFormed(got) {
		return false
	}
	want := e.Sign(reference, amountInCents, currency, expiration)
	return Equal(want, strings.ToLower(got))
}

// Checksum computes a webhook event checksum: the property values in the
// order the gateway listed them, then the event timestamp, then the secret.
func Checksum(values []string, timestamp, eventsSecret string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(v)
	}
	b.WriteString(timestamp)
	b.WriteString(eventsSecret)
	return digest(b.String())
}

func VerifyChecksum(got string, values []string, timestamp, eventsSecret string) bool {
	if !WellFormed(got) {
		return false
	}
	return Equal(Checksum(values, timestamp, eventsSecret), strings.ToLower(got))
}

// WellFormed reports whether s is a hex digest of DigestLen characters.
func WellFormed(s string) bool {
	if len(s) != DigestLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Equal compares two digests without leaking the position of the first
// differing byte.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
