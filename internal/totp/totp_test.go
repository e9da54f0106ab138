package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Base32 of the ASCII seed "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestDecodeSecret(t *testing.T) {
	t.Run("decodes RFC seed", func(t *testing.T) {
		assert.Equal(t, []byte("12345678901234567890"), DecodeSecret(rfcSecret))
	})

	t.Run("is case insensitive and strips padding", func(t *testing.T) {
		assert.Equal(t, []byte("f"), DecodeSecret("my======"))
		assert.Equal(t, []byte("foobar"), DecodeSecret("mzxw6ytboi======"))
	})

	t.Run("skips characters outside the alphabet", func(t *testing.T) {
		assert.Equal(t, DecodeSecret(rfcSecret), DecodeSecret("gezd gnbv-gy3t qojq gezd gnbv gy3t qojq"))
	})

	t.Run("drops trailing partial byte", func(t *testing.T) {
		// 3 chars = 15 bits, one whole byte
		assert.Len(t, DecodeSecret("MZX"), 1)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, DecodeSecret(""))
		assert.Empty(t, DecodeSecret("===="))
	})
}

func TestGenerate_RFC6238Vectors(t *testing.T) {
	key := DecodeSecret(rfcSecret)
	tests := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			code := Generate(key, time.Unix(tc.unix, 0), DefaultStep)
			assert.Equal(t, tc.code, code)
			assert.Len(t, code, Digits)
		})
	}
}

func TestGenerate_StableWithinWindow(t *testing.T) {
	key := DecodeSecret(rfcSecret)
	start := time.Unix(1111111110, 0)

	first := Generate(key, start, DefaultStep)
	for i := 1; i < 30; i++ {
		assert.Equal(t, first, Generate(key, start.Add(time.Duration(i)*time.Second), DefaultStep))
	}
	assert.NotEqual(t, first, Generate(key, start.Add(30*time.Second), DefaultStep))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 30, Remaining(time.Unix(60, 0), DefaultStep))
	assert.Equal(t, 1, Remaining(time.Unix(59, 0), DefaultStep))
	assert.Equal(t, 29, Remaining(time.Unix(1111111111, 0), DefaultStep))

	for s := int64(0); s < 90; s++ {
		r := Remaining(time.Unix(s, 0), DefaultStep)
		require.GreaterOrEqual(t, r, 1)
		require.LessOrEqual(t, r, 30)
	}
}

func TestNow(t *testing.T) {
	clock := func() time.Time { return time.Unix(1234567890, 0) }

	code := Now(rfcSecret, clock)
	assert.Equal(t, Code{Code: "005924", Remaining: 30 - 1234567890%30}, code)

	// identical inputs always give identical output
	assert.Equal(t, code, Now(rfcSecret, clock))
}
