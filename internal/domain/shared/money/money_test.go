package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRequiresSameCurrency(t *testing.T) {
	_, err := Must(100, "usd").Add(Must(100, "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := Must(100, "usd").Add(Must(250, "USD"))
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: 350, Currency: "USD"}, sum)
}

func TestMultiplyDetectsOverflow(t *testing.T) {
	_, err := Must(math.MaxInt64/2+1, "USD").Multiply(2)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestBasisPointsTruncates(t *testing.T) {
	fee, err := Must(12345, "USD").BasisPoints(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), fee.Amount)
}

func TestString(t *testing.T) {
	assert.Equal(t, "150.05 USD", Must(15005, "USD").String())
	assert.Equal(t, "-0.50 USD", Must(-50, "USD").String())
}
