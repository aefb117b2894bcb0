package saltedbloom

import (
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Config is applied once when a filter is created and never changes afterwards.
type Config struct {
	ExpectedInsertions       int64
	FalsePositiveProbability float64
	LoggingEnabled           bool
	// Recover makes Open restore the filter from its Store instead of creating an empty one.
	Recover bool
}

func DefaultConfig() Config {
	return Config{
		LoggingEnabled: true,
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var batchErr *multierror.Error
	if err := validateExpectedInsertions(c.ExpectedInsertions); err != nil {
		batchErr = multierror.Append(batchErr, err)
	}
	if err := validateFalsePositiveProbability(c.FalsePositiveProbability); err != nil {
		batchErr = multierror.Append(batchErr, err)
	}
	return batchErr.ErrorOrNil()
}

func validateExpectedInsertions(expectedInsertions int64) error {
	if expectedInsertions <= 0 {
		return errors.Wrapf(
			ErrInvalidConfig,
			"expected insertions must be greater than zero, got %d",
			expectedInsertions,
		)
	}
	return nil
}

func validateFalsePositiveProbability(falsePositiveProbability float64) error {
	if math.IsNaN(falsePositiveProbability) || falsePositiveProbability <= 0 || falsePositiveProbability >= 1 {
		return errors.Wrapf(
			ErrInvalidConfig,
			"false positive probability must be between 0 and 1 exclusive, got %v",
			falsePositiveProbability,
		)
	}
	return nil
}
