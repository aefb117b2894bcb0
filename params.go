package saltedbloom

import (
	"math"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/pkg/errors"
)

// MaxWordsCount bounds the bit store length so persisted bitmaps stay readable
// by implementations indexing words with a signed 32-bit integer.
const MaxWordsCount = math.MaxInt32

const wordBits = 64

// Params are derived from a Config and stay fixed for the filter's lifetime.
type Params struct {
	BitsCount          int64
	HashFunctionsCount int
}

// EstimateParams plans the bit store size and the number of hash functions.
func EstimateParams(expectedInsertions int64, falsePositiveProbability float64) (Params, error) {
	bitsCount, err := OptimalBitsCount(expectedInsertions, falsePositiveProbability)
	if err != nil {
		return Params{}, err
	}
	return Params{
		BitsCount:          bitsCount,
		HashFunctionsCount: OptimalHashFunctionsCount(expectedInsertions, bitsCount),
	}, nil
}

// OptimalBitsCount returns ceil(-n*ln(p)/ln(2)^2), never less than 1.
func OptimalBitsCount(expectedInsertions int64, falsePositiveProbability float64) (int64, error) {
	if err := validateExpectedInsertions(expectedInsertions); err != nil {
		return 0, err
	}
	if err := validateFalsePositiveProbability(falsePositiveProbability); err != nil {
		return 0, err
	}
	// checked before EstimateParameters converts the product to uint
	bitsPerElement := -math.Log(falsePositiveProbability) / (math.Ln2 * math.Ln2)
	if float64(expectedInsertions)*bitsPerElement > float64(MaxWordsCount)*wordBits {
		return 0, errors.Wrapf(
			ErrInvalidConfig,
			"%d insertions at %g need more than %d words",
			expectedInsertions,
			falsePositiveProbability,
			MaxWordsCount,
		)
	}
	bitsCount, _ := bloom.EstimateParameters(uint(expectedInsertions), falsePositiveProbability)
	if bitsCount == 0 {
		bitsCount = 1
	}
	return int64(bitsCount), nil
}

// OptimalHashFunctionsCount returns max(1, ceil(m/n*ln(2))). Rounding up keeps
// the achieved false positive rate from drifting above the target.
func OptimalHashFunctionsCount(expectedInsertions, bitsCount int64) int {
	if expectedInsertions <= 0 {
		return 1
	}
	k := int(math.Ceil(float64(bitsCount) / float64(expectedInsertions) * math.Log(2)))
	if k < 1 {
		return 1
	}
	return k
}

// WordsCount is the number of 64-bit words holding bitsCount bits.
func WordsCount(bitsCount int64) int {
	return int((bitsCount + wordBits - 1) / wordBits)
}
