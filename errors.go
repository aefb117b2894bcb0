package saltedbloom

import (
	"github.com/pkg/errors"
)

// Sentinel errors. Wrapped errors keep them reachable through errors.Is.
var (
	ErrInvalidConfig      = errors.New("invalid bloom filter configuration")
	ErrHashFailed         = errors.New("element hash computation failed")
	ErrSnapshotNotFound   = errors.New("bloom filter snapshot not found")
	ErrCorruptSnapshot    = errors.New("corrupt bloom filter snapshot")
	ErrBitmapSizeMismatch = errors.New("bitmap size does not match the declared bits count")
	ErrNotInitialized     = errors.New("bloom filter is not initialized")
)
