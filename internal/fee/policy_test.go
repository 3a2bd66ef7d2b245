package fee_test

import (
	"testing"

	"github.com/dapmarket/marketplace-ledger/internal/fee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicy(t *testing.T) {
	for _, percent := range []int64{0, 1, 2, 50, 99} {
		_, err := fee.NewPolicy(percent)
		assert.NoError(t, err, "percent %d should be accepted", percent)
	}

	for _, percent := range []int64{-1, 100, 101, 1000} {
		_, err := fee.NewPolicy(percent)
		assert.ErrorIs(t, err, fee.ErrInvalidPercent, "percent %d should be rejected", percent)
	}
}

func TestSplit(t *testing.T) {
	policy, err := fee.NewPolicy(2)
	require.NoError(t, err)

	feeAmount, totalCharge := policy.Split(300)
	assert.Equal(t, int64(6), feeAmount)
	assert.Equal(t, int64(306), totalCharge)
}

func TestSplitTruncatesFee(t *testing.T) {
	policy, err := fee.NewPolicy(2)
	require.NoError(t, err)

	// 2% of 199 is 3.98; the fee must round down, never up
	feeAmount, totalCharge := policy.Split(199)
	assert.Equal(t, int64(3), feeAmount)
	assert.Equal(t, int64(202), totalCharge)

	policy, err = fee.NewPolicy(1)
	require.NoError(t, err)

	feeAmount, totalCharge = policy.Split(50)
	assert.Equal(t, int64(0), feeAmount)
	assert.Equal(t, int64(50), totalCharge)
}

func TestSplitZeroPercent(t *testing.T) {
	policy, err := fee.NewPolicy(0)
	require.NoError(t, err)

	feeAmount, totalCharge := policy.Split(1000)
	assert.Equal(t, int64(0), feeAmount)
	assert.Equal(t, int64(1000), totalCharge)
}

func TestSplitConservation(t *testing.T) {
	for _, percent := range []int64{0, 1, 2, 13, 99} {
		policy, err := fee.NewPolicy(percent)
		require.NoError(t, err)

		for _, price := range []int64{1, 7, 300, 999, 123456789} {
			feeAmount, totalCharge := policy.Split(price)
			assert.Equal(t, totalCharge, price+feeAmount, "seller proceeds plus fee must equal the total charge")
		}
	}
}
