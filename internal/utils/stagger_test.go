package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRandomStagger(t *testing.T) {
	interval := 10 * time.Second

	for i := 0; i < 1000; i++ {
		d := RandomStagger(interval)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, interval)
	}
}

func TestRandomStaggerZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), RandomStagger(0))
}

func TestRandomStaggerQuarter(t *testing.T) {
	interval := 24 * time.Hour
	low := 3 * (interval / 4)
	high := 5 * (interval / 4)

	for i := 0; i < 1000; i++ {
		d := RandomStaggerQuarter(interval)
		assert.GreaterOrEqual(t, d, low)
		assert.Less(t, d, high)
	}
}
