package saltedbloom

import (
	"math/big"
	"sync/atomic"
)

// Addressing maps a hash value to a bit of the store.
type Addressing string

const (
	// AddressingLinear uses bit h mod bitsCount, i.e. word pos/64 and bit pos%64.
	AddressingLinear Addressing = "linear"
	// AddressingWordModulo uses word h mod len(words) and bit h mod 64. Snapshots
	// without an addressing field were written this way. Both indexes derive from
	// the same h, so when len(words) shares a factor with 64 only
	// 64*len(words)/gcd(len(words), 64) bits are reachable.
	AddressingWordModulo Addressing = ""
)

func (a Addressing) known() bool {
	return a == AddressingLinear || a == AddressingWordModulo
}

// bitStore is a fixed array of 64-bit words. Bits are only ever set.
type bitStore struct {
	words      []atomic.Uint64
	addressing Addressing
	bitsCount  *big.Int
	length     *big.Int
}

func newBitStore(bitsCount int64, addressing Addressing) *bitStore {
	return newBitStoreOf(WordsCount(bitsCount), bitsCount, addressing)
}

func newBitStoreOf(wordsCount int, bitsCount int64, addressing Addressing) *bitStore {
	return &bitStore{
		words:      make([]atomic.Uint64, wordsCount),
		addressing: addressing,
		bitsCount:  big.NewInt(bitsCount),
		length:     big.NewInt(int64(wordsCount)),
	}
}

// bitStoreFrom keeps len(words) as the store length; word-modulo addressing
// depends on it.
func bitStoreFrom(words []uint64, bitsCount int64, addressing Addressing) *bitStore {
	s := newBitStoreOf(len(words), bitsCount, addressing)
	for i, w := range words {
		s.words[i].Store(w)
	}
	return s
}

func (s *bitStore) location(h *big.Int) (wordIdx int, mask uint64) {
	if s.addressing == AddressingWordModulo {
		wordIdx = int(new(big.Int).Mod(h, s.length).Int64())
		// Uint64 keeps the low 64 bits, enough for h mod 64
		return wordIdx, 1 << (h.Uint64() % wordBits)
	}
	pos := new(big.Int).Mod(h, s.bitsCount).Uint64()
	return int(pos / wordBits), 1 << (pos % wordBits)
}

// reachableBits is the number of distinct bits a hash can land on.
func (s *bitStore) reachableBits() int64 {
	if s.addressing != AddressingWordModulo {
		return s.bitsCount.Int64()
	}
	w := int64(len(s.words))
	return w * wordBits / gcd(w, wordBits)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (s *bitStore) test(h *big.Int) bool {
	wordIdx, mask := s.location(h)
	return s.words[wordIdx].Load()&mask != 0
}

// set reports whether the bit was flipped by this call.
func (s *bitStore) set(h *big.Int) bool {
	wordIdx, mask := s.location(h)
	word := &s.words[wordIdx]
	for {
		old := word.Load()
		if old&mask != 0 {
			return false
		}
		if word.CompareAndSwap(old, old|mask) {
			return true
		}
	}
}

// snapshot copies the words. Each word is read atomically.
func (s *bitStore) snapshot() []uint64 {
	words := make([]uint64, len(s.words))
	for i := range s.words {
		words[i] = s.words[i].Load()
	}
	return words
}
