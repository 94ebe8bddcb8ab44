package coin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tokenvault/weft/errors"
)

func TestAddCoin(t *testing.T) {
	base := NewCoin(17, 2345566, "DEF")

	cases := map[string]struct {
		a, b    Coin
		wantRes Coin
		wantErr *errors.Error
	}{
		"plus zero": {
			a:       base,
			b:       Coin{},
			wantRes: base,
		},
		"wrong currency": {
			a:       base,
			b:       NewCoin(1, 0, "ABC"),
			wantErr: errors.ErrAmount,
		},
		"normal math": {
			a:       NewCoin(7, 5000, "ABC"),
			b:       NewCoin(-4, -12000, "ABC"),
			wantRes: NewCoin(2, FracUnit-7000, "ABC"),
		},
		"overflow": {
			a:       NewCoin(MaxInt, 0, "DIN"),
			b:       NewCoin(2, 0, "DIN"),
			wantErr: errors.ErrOverflow,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			res, err := tc.a.Add(tc.b)
			if tc.wantErr != nil {
				assert.True(t, tc.wantErr.Is(err))
				return
			}
			assert.NoError(t, err)
			assert.True(t, tc.wantRes.Equals(res), "got %v", res)
		})
	}
}

func TestMultiplyDivide(t *testing.T) {
	price := NewCoin(1000, 0, "IOV")

	// a royalty share of 3000 basis points of 1000 IOV is 300 IOV
	mul, err := price.Multiply(3000)
	assert.NoError(t, err)
	share, rest, err := mul.Divide(10000)
	assert.NoError(t, err)
	assert.True(t, NewCoin(300, 0, "IOV").Equals(share), "got %v", share)
	assert.True(t, rest.IsZero())

	// an uneven division floors the share and reports the leftover
	share, rest, err = NewCoin(4, 0, "EUR").Divide(3)
	assert.NoError(t, err)
	assert.True(t, NewCoin(1, 333333333, "EUR").Equals(share), "got %v", share)
	assert.True(t, rest.IsPositive())
}

func TestCompare(t *testing.T) {
	a := NewCoin(1, 0, "IOV")
	b := NewCoin(0, 999999999, "IOV")

	assert.Equal(t, 1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.IsGTE(b))
	assert.False(t, b.IsGTE(a))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, NewCoin(1, 0, "IOV").Validate())
	assert.Error(t, NewCoin(1, 0, "io").Validate())
	assert.Error(t, NewCoin(1, -5, "IOV").Validate())
	assert.Error(t, NewCoin(MaxInt+1, 0, "IOV").Validate())
}
