package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	date := time.Date(2025, time.September, 25, 10, 0, 0, 0, time.UTC)

	code := Format(date, 1)
	assert.Equal(t, "2509251001", code)

	code = Format(date, 42)
	assert.Equal(t, "2509251042", code)
}

func TestFormatIsPure(t *testing.T) {
	date := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	first := Format(date, 7)
	second := Format(date, 7)
	assert.Equal(t, first, second)
	assert.Equal(t, "0201241007", first)
}

func TestFormatDistinctSequences(t *testing.T) {
	date := time.Date(2025, time.September, 25, 0, 0, 0, 0, time.UTC)
	seen := make(map[string]struct{})
	for seq := int64(1); seq <= 100; seq++ {
		code := Format(date, seq)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s at sequence %d", code, seq)
		seen[code] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Format(time.Now(), 1)))
	assert.True(t, Valid("2509251001"))
	assert.False(t, Valid("250925"))
	assert.False(t, Valid("25092a1001"))
	assert.False(t, Valid(""))
}
