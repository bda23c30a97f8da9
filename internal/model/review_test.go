package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageOf(t *testing.T) {
	none := AverageOf(nil)
	assert.False(t, none.Valid)
	assert.Zero(t, none.Count)

	r := AverageOf([]int{5, 4, 4})
	assert.True(t, r.Valid)
	assert.Equal(t, 3, r.Count)
	assert.Equal(t, 4.3, r.Value)

	assert.Equal(t, 4.5, AverageOf([]int{4, 5}).Value)
	assert.Equal(t, 1.0, AverageOf([]int{1}).Value)
}

func TestRatingJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Rating Rating `json:"avg_rating"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"avg_rating":null}`, string(b))

	b, err = json.Marshal(AverageOf([]int{3, 4}))
	require.NoError(t, err)
	assert.Equal(t, "3.5", string(b))
}

func TestParseMoney(t *testing.T) {
	tests := map[string]Money{
		"0":        0,
		"950":      95000,
		"950.5":    95050,
		"950.05":   95005,
		" 12.30 ":  1230,
		"99999999": 99999999_00,
	}
	for in, want := range tests {
		got, err := ParseMoney(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "-1", "1.234", "1.", ".5", "1e3", "abc", "100000000"} {
		_, err := ParseMoney(bad)
		assert.ErrorIs(t, err, ErrInvalidMoney, bad)
	}
}

func TestMoneyJSON(t *testing.T) {
	var body struct {
		Price Money `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price": 1200.5}`), &body))
	assert.Equal(t, Money(120050), body.Price)
	require.NoError(t, json.Unmarshal([]byte(`{"price": "80"}`), &body))
	assert.Equal(t, "80.00", body.Price.String())

	l := Listing{Price: 120050}
	assert.Equal(t, "1200.50 € / month", l.PriceDisplay())
}
