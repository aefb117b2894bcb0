package saltedbloom

import (
	"math"
	"math/big"
	"sync"
	"testing"

	requireLib "github.com/stretchr/testify/require"
)

func TestWordModuloAddressing(t *testing.T) {
	require := requireLib.New(t)
	// 3 words: h addresses word h%3, bit h%64
	s := newBitStore(3*64, AddressingWordModulo)

	require.True(s.set(big.NewInt(130)))
	require.Equal([]uint64{0, 1 << 2, 0}, s.snapshot())

	require.True(s.set(big.NewInt(66)))
	require.Equal([]uint64{1 << 2, 1 << 2, 0}, s.snapshot())

	// 2 and 194 share word 2 and bit 2
	require.False(s.test(big.NewInt(194)))
	require.True(s.set(big.NewInt(2)))
	require.True(s.test(big.NewInt(194)))
}

func TestLinearAddressing(t *testing.T) {
	require := requireLib.New(t)
	s := newBitStore(100, AddressingLinear)
	require.Len(s.snapshot(), 2)

	// 130 mod 100 = 30 -> word 0, bit 30
	require.True(s.set(big.NewInt(130)))
	// 70 -> word 1, bit 6
	require.True(s.set(big.NewInt(70)))
	require.Equal([]uint64{1 << 30, 1 << 6}, s.snapshot())
	require.True(s.test(big.NewInt(30)))
	require.False(s.test(big.NewInt(31)))
}

func TestAddressingOfWideHashes(t *testing.T) {
	require := requireLib.New(t)
	h, ok := new(big.Int).SetString("c0ffee00000000000000000000000000000000000000000000000000deadbeef", 16)
	require.True(ok)

	for _, addressing := range []Addressing{AddressingLinear, AddressingWordModulo} {
		s := newBitStore(9586, addressing)
		require.True(s.set(h))
		require.True(s.test(h))

		words := s.snapshot()
		var setBits int
		for idx, w := range words {
			if w == 0 {
				continue
			}
			setBits++
			if addressing == AddressingWordModulo {
				require.Equal(new(big.Int).Mod(h, big.NewInt(int64(len(words)))).Int64(), int64(idx))
			} else {
				pos := new(big.Int).Mod(h, big.NewInt(9586)).Int64()
				require.Equal(pos/64, int64(idx))
				require.Equal(uint64(1)<<(pos%64), w)
			}
		}
		require.Equal(1, setBits)
	}
}

func TestSetIsIdempotent(t *testing.T) {
	require := requireLib.New(t)
	s := newBitStore(1000, AddressingLinear)
	h := big.NewInt(12345)
	require.True(s.set(h))
	before := s.snapshot()
	require.False(s.set(h))
	require.Equal(before, s.snapshot())
}

func TestConcurrentSetsDontLoseUpdates(t *testing.T) {
	s := newBitStore(64, AddressingLinear)
	wg := &sync.WaitGroup{}
	for bit := int64(0); bit < 64; bit++ {
		wg.Add(1)
		go func(bit int64) {
			defer wg.Done()
			s.set(big.NewInt(bit))
		}(bit)
	}
	wg.Wait()
	requireLib.Equal(t, []uint64{math.MaxUint64}, s.snapshot())
}

func TestReachableBits(t *testing.T) {
	require := requireLib.New(t)
	require.Equal(int64(9586), newBitStore(9586, AddressingLinear).reachableBits())
	// 150 words share a factor of 2 with 64
	require.Equal(int64(150*64/2), newBitStore(9586, AddressingWordModulo).reachableBits())
	require.Equal(int64(3*64), newBitStore(3*64, AddressingWordModulo).reachableBits())
}

func TestBitStoreFrom(t *testing.T) {
	s := bitStoreFrom([]uint64{1, 2, 3}, 150, AddressingLinear)
	requireLib.Equal(t, []uint64{1, 2, 3}, s.snapshot())
}
