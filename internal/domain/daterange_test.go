package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange_Validate(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := NewDateRange(start, start.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidDateRange)

	r, err := NewDateRange(start, start)
	require.NoError(t, err)
	assert.Equal(t, start, r.Start)
}

func TestDateRange_NormalizeUsesReferenceTimezone(t *testing.T) {
	// 01:30 UTC on March 2nd is still March 1st in São Paulo (UTC-3).
	start := time.Date(2025, 3, 2, 1, 30, 0, 0, time.UTC)
	end := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	n := DateRange{Start: start, End: end}.Normalize()

	assert.Equal(t, time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC), n.Start.UTC())
	assert.Equal(t, time.Date(2025, 3, 6, 2, 59, 59, int(999*time.Millisecond), time.UTC), n.End.UTC())
}

func TestDateRange_KeyIsStableAcrossEquivalentInputs(t *testing.T) {
	a, err := ParseDate("2025-03-01")
	require.NoError(t, err)
	b, err := ParseDate("2025-03-01T15:00:00-03:00")
	require.NoError(t, err)

	assert.Equal(t, DateRange{Start: a, End: a}.Key(), DateRange{Start: b, End: b}.Key())
	assert.Equal(t, "2025-03-01T03:00:00.000Z:2025-03-02T02:59:59.999Z", DateRange{Start: a, End: a}.Key())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-27")
	require.NoError(t, err)
	assert.Equal(t, "27/03/2025", FormatDay(d))

	d, err = ParseDate("2025-03-27T10:15:00Z")
	require.NoError(t, err)
	assert.Equal(t, "27/03/2025, 07:15:00", FormatTimestamp(d))

	_, err = ParseDate("27/03/2025")
	assert.Error(t, err)
	_, err = ParseDate("  ")
	assert.Error(t, err)
}
