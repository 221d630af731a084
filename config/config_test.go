package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSessionTimeout(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"12h", 12 * time.Hour},
		{"180d", 180 * 24 * time.Hour},
		{"1D", 24 * time.Hour},
		{"", 24 * time.Hour},
		{"12", 24 * time.Hour},
		{"h12", 24 * time.Hour},
		{"12m", 24 * time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseSessionTimeout(tt.raw), "input %q", tt.raw)
	}
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, 6*time.Hour, parseInterval("6h", time.Hour))
	assert.Equal(t, 90*time.Second, parseInterval("90s", time.Hour))
	assert.Equal(t, time.Hour, parseInterval("", time.Hour))
	assert.Equal(t, time.Hour, parseInterval("soon", time.Hour))
	assert.Equal(t, time.Hour, parseInterval("-5m", time.Hour))
}

func TestMaskPassword(t *testing.T) {
	masked := maskPassword("host=db user=app password=s3cret dbname=rollcall")
	assert.Equal(t, "host=db user=app password=***** dbname=rollcall", masked)

	masked = maskPassword("host=db user=app password=s3cret")
	assert.Equal(t, "host=db user=app password=*****", masked)

	assert.Equal(t, "host=db user=app", maskPassword("host=db user=app"))
}
