package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariants(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"BTC/USDT", []string{"BTC/USDT", "BTC-USDT"}},
		{"BTC-USDT", []string{"BTC-USDT", "BTC/USDT"}},
		{"btc", []string{"BTC/USDT", "BTC-USDT"}},
		{" eth/usdt ", []string{"ETH/USDT", "ETH-USDT"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Variants(tt.in, "USDT"), "Variants(%q)", tt.in)
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "BTC/USDT", Canonical("BTC-USDT", "USDT"))
	assert.Equal(t, "BTC/USDT", Canonical("btc", "usdt"))
	assert.Equal(t, "SOL/BTC", Canonical("SOL/BTC", "USDT"))
	assert.Equal(t, "price_BTC/USDT", CacheKey(Canonical("BTC", "USDT")))
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair("eth-usdt", "USDT")
	require.NoError(t, err)
	assert.Equal(t, Pair{Base: "ETH", Quote: "USDT"}, p)

	_, err = ParsePair("", "USDT")
	assert.Error(t, err)
	_, err = ParsePair("BTC/", "USDT")
	assert.Error(t, err)
}

func TestFirstSuccess(t *testing.T) {
	calls := 0
	got, err := FirstSuccess([]int{1, 2, 3}, func(i int) (string, error) {
		calls++
		if i < 2 {
			return "", errors.New("nope")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)

	last := errors.New("last")
	_, err = FirstSuccess([]int{1, 2}, func(i int) (string, error) {
		if i == 2 {
			return "", last
		}
		return "", errors.New("first")
	})
	assert.ErrorIs(t, err, last)

	_, err = FirstSuccess([]int{}, func(int) (string, error) { return "x", nil })
	assert.Error(t, err)
}

func TestWelford(t *testing.T) {
	var w welford
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.update(x)
	}
	assert.InDelta(t, 5.0, w.mean, 1e-9)
	assert.InDelta(t, 2.138, w.stddev(), 1e-3)
}
