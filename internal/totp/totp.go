// Package totp derives RFC 6238 time-based one-time codes from a stored
// Base32 secret. Nothing is cached: every call recomputes from the clock.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultStep = 30 * time.Second
	Digits      = 6
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Code is a live code together with the seconds left in its window.
type Code struct {
	Code      string `json:"code"`
	Remaining int    `json:"remaining"`
}

// DecodeSecret decodes RFC 4648 Base32 text. It is lenient on purpose:
// case is folded, padding is stripped and characters outside the alphabet
// (spaces, dashes) are skipped rather than rejected. Leftover bits that do not
// fill a whole byte are dropped.
func DecodeSecret(secret string) []byte {
	s := strings.TrimRight(strings.ToUpper(secret), "=")

	out := make([]byte, 0, len(s)*5/8)
	var buffer uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(base32Alphabet, s[i])
		if v < 0 {
			continue
		}
		buffer = buffer<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buffer>>bits))
			buffer &= 1<<bits - 1
		}
	}
	return out
}

// Generate computes the code for the window containing t.
func Generate(key []byte, t time.Time, step time.Duration) string {
	counter := uint64(t.Unix()) / uint64(step/time.Second)

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	binCode := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", Digits, binCode%1_000_000)
}

// Remaining returns the whole seconds until the window containing t rolls.
func Remaining(t time.Time, step time.Duration) int {
	s := int64(step / time.Second)
	return int(s - t.Unix()%s)
}

// At returns the code and remaining seconds for secret at t.
func At(secret string, t time.Time) Code {
	return Code{
		Code:      Generate(DecodeSecret(secret), t, DefaultStep),
		Remaining: Remaining(t, DefaultStep),
	}
}

// Now returns the current code for secret using clock.
func Now(secret string, clock func() time.Time) Code {
	return At(secret, clock())
}
