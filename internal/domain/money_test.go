package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney_StripsThousandsSeparators(t *testing.T) {
	a, err := ParseMoney("1,234.56", "EUR")
	require.NoError(t, err)
	b, err := ParseMoney("1234.56", "EUR")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, int64(123456), a.MinorUnits)
}

func TestParseMoney_WidensIntegerInputs(t *testing.T) {
	m, err := ParseMoney("1234", "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(123400), m.MinorUnits)

	single, err := ParseMoney("9.5", "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(950), single.MinorUnits)
}

func TestParseMoney_NegativeAndZero(t *testing.T) {
	neg, err := ParseMoney("-12.34", "CHF")
	require.NoError(t, err)
	assert.Equal(t, int64(-1234), neg.MinorUnits)

	zero, err := ParseMoney("0", "CHF")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestParseMoney_RejectsMalformedInput(t *testing.T) {
	for _, s := range []string{"", "abc", "12.345", "12.3x", "--5"} {
		_, err := ParseMoney(s, "EUR")
		require.Error(t, err, "input %q", s)
	}
}

func TestMoney_FormatParseRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 123456, -123456, 9000000000} {
		m := MoneyFromMinorUnits(minor, "EUR")
		back, err := ParseMoney(m.Format(), "EUR")
		require.NoError(t, err)
		assert.Equal(t, m, back, "minor units %d", minor)
	}
}

func TestMoney_AddRejectsCurrencyMismatch(t *testing.T) {
	eur := MoneyFromMinorUnits(100, "EUR")
	chf := MoneyFromMinorUnits(100, "CHF")

	_, err := eur.Add(chf)
	require.Error(t, err)

	sum, err := eur.Add(MoneyFromMinorUnits(150, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, int64(250), sum.MinorUnits)
}
