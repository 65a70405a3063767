package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate_FormatRoundTrip(t *testing.T) {
	for _, d := range []Date{
		NewDate(2024, time.June, 1),
		NewDate(2024, time.February, 29),
		NewDate(1999, time.December, 31),
	} {
		back, err := ParseDate(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}
}

func TestParseDate_TruncatesDatetimes(t *testing.T) {
	for _, s := range []string{
		"2024-06-01",
		"2024-06-01T14:30:00",
		"2024-06-01T14:30:00Z",
		"2024-06-01T23:59:59+02:00",
	} {
		d, err := ParseDate(s)
		require.NoError(t, err, "input %q", s)
		assert.Equal(t, NewDate(2024, time.June, 1), d, "input %q", s)
	}
}

func TestParseDate_RejectsNonISOInput(t *testing.T) {
	for _, s := range []string{"", "01/06/2024", "June 1, 2024", "2024-13-01"} {
		_, err := ParseDate(s)
		require.Error(t, err, "input %q", s)
	}
}

func TestDate_NightsAndAddDays(t *testing.T) {
	arrival := NewDate(2024, time.March, 30)
	departure := NewDate(2024, time.April, 1)

	assert.Equal(t, 2, arrival.NightsUntil(departure))
	assert.Equal(t, departure, arrival.AddDays(2))
	assert.True(t, arrival.Before(departure))
}
