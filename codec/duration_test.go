package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "PT0S"},
		{time.Second, "PT1S"},
		{3*time.Minute + 28*time.Second, "PT3M28S"},
		{2 * time.Hour, "PT2H"},
		{26*time.Hour + 5*time.Second, "PT26H5S"},
		{1500 * time.Millisecond, "PT1.5S"},
		{time.Nanosecond, "PT0.000000001S"},
		{-1500 * time.Millisecond, "-PT1.5S"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT0S", 0},
		{"PT3M28S", 3*time.Minute + 28*time.Second},
		{"P1DT2H", 26 * time.Hour},
		{"P1D", 24 * time.Hour},
		{"PT0.25S", 250 * time.Millisecond},
		{"+PT1S", time.Second},
		{"-PT1M", -time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"P",
		"PT",
		"3M",
		"PT3X",
		"PT1S2M",
		"PT1.5M",
		"PT1.S",
		"PT0.1234567891S",
		"P1H",
		"PTT1S",
		"PT99999999999999999999S",
		"PT9223372037S",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDuration(in)
			assert.Error(t, err)
		})
	}
}

// Exact to the nanosecond over the whole int64 range, beyond float64's 53 bits.
func TestDuration_RoundTripExtremes(t *testing.T) {
	for _, d := range []time.Duration{
		math.MaxInt64,
		math.MinInt64,
		math.MaxInt64 - 1,
		-time.Nanosecond,
		123456789 * time.Microsecond,
		123456789*time.Second + 123456789,
		1<<53 + 1,
	} {
		got, err := ParseDuration(FormatDuration(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
}
