package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/txnengine/internal/domain"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want domain.Money
	}{
		{"0", 0},
		{"1", 10000},
		{"1.5", 15000},
		{"1.0001", 10001},
		{"100.0000", 1000000},
	}
	for _, c := range cases {
		got, err := domain.ParseMoney(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseMoney_RejectsExcessPrecision(t *testing.T) {
	_, err := domain.ParseMoney("1.00001")
	require.Error(t, err)
}

func TestParseMoney_RejectsGarbage(t *testing.T) {
	_, err := domain.ParseMoney("not-a-number")
	require.Error(t, err)
}

func TestMoney_String(t *testing.T) {
	m := domain.MoneyFromMinorUnits(12345)
	assert.Equal(t, "1.2345", m.String())
}

func TestMoney_ArithmeticAndComparison(t *testing.T) {
	a := domain.MoneyFromMinorUnits(10000)
	b := domain.MoneyFromMinorUnits(3000)

	assert.Equal(t, domain.MoneyFromMinorUnits(13000), a.Add(b))
	assert.Equal(t, domain.MoneyFromMinorUnits(7000), a.Sub(b))
	assert.True(t, a.IsPositive())
	assert.True(t, b.LessThan(a))
	assert.False(t, a.LessThan(b))
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m, err := domain.ParseMoney("42.5")
	require.NoError(t, err)

	encoded, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded domain.Money
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, m, decoded)
}

func TestMoney_UnmarshalAcceptsQuotedString(t *testing.T) {
	var m domain.Money
	require.NoError(t, json.Unmarshal([]byte(`"9.9900"`), &m))
	assert.Equal(t, domain.MoneyFromMinorUnits(99900), m)
}
