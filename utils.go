package saltedbloom

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

const wordBytes = 8

func uint64ToByte(i uint64) []byte {
	data := make([]byte, wordBytes)
	binary.BigEndian.PutUint64(data, i)
	return data
}

// bitmapChecksum is the xxh3-64 digest of an encoded bitmap in hex.
func bitmapChecksum(bitmap []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(bitmap))
}
