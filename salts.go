package saltedbloom

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SaltLength is the number of hex characters in a generated salt.
const SaltLength = 10

// NewSalts generates one random salt per hash function. Salts are independent
// draws; an accidental duplicate only weakens independence between two hashes.
func NewSalts(count int) ([]string, error) {
	if count < 1 {
		return nil, errors.Wrapf(ErrInvalidConfig, "salts count must be positive, got %d", count)
	}
	salts := make([]string, count)
	for i := range salts {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, errors.Wrapf(err, "salt %d generation failed", i)
		}
		salts[i] = strings.ReplaceAll(id.String(), "-", "")[7 : 7+SaltLength]
	}
	return salts, nil
}

// SaltedHash returns HMAC-SHA256(salt, element) as a 256-bit unsigned integer.
func SaltedHash(element, salt string) (*big.Int, error) {
	if salt == "" {
		return nil, errors.Wrap(ErrHashFailed, "empty salt can't key the hash function")
	}
	mac := hmac.New(sha256.New, []byte(salt))
	// hash.Hash never returns an error from Write
	_, _ = mac.Write([]byte(element))
	return new(big.Int).SetBytes(mac.Sum(nil)), nil
}

// saltedHashes computes the hash of element for every salt, in salt order.
func saltedHashes(element string, salts []string) ([]*big.Int, error) {
	hashes := make([]*big.Int, len(salts))
	for idx, salt := range salts {
		h, err := SaltedHash(element, salt)
		if err != nil {
			return nil, errors.Wrapf(err, "hash function %d", idx)
		}
		hashes[idx] = h
	}
	return hashes, nil
}

func validateSalts(salts []string, hashFunctionsCount int) error {
	if len(salts) != hashFunctionsCount {
		return errors.Wrapf(
			ErrCorruptSnapshot,
			"%d salts for %d hash functions",
			len(salts),
			hashFunctionsCount,
		)
	}
	for idx, salt := range salts {
		if salt == "" {
			return errors.Wrapf(ErrCorruptSnapshot, "salt %d is empty", idx)
		}
	}
	return nil
}
