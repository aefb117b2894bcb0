package saltedbloom

import (
	"bytes"
	"math/rand"
	"testing"

	requireLib "github.com/stretchr/testify/require"
)

func TestWriteBitmapIsBigEndian(t *testing.T) {
	require := requireLib.New(t)
	var buf bytes.Buffer
	n, err := WriteBitmap(&buf, []uint64{0x0102030405060708, 1})
	require.NoError(err)
	require.Equal(int64(16), n)
	require.Equal(
		[]byte{1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0, 0, 0, 0, 1},
		buf.Bytes(),
	)
}

func TestBitmapRoundTrip(t *testing.T) {
	require := requireLib.New(t)
	words := make([]uint64, 150)
	for i := range words {
		words[i] = rand.Uint64()
	}
	var buf bytes.Buffer
	_, err := WriteBitmap(&buf, words)
	require.NoError(err)
	require.Equal(150*8, buf.Len())

	restored, err := ReadBitmap(&buf, 9586)
	require.NoError(err)
	require.Equal(words, restored)
}

func TestReadBitmapRejectsSizeMismatch(t *testing.T) {
	encode := func(wordsCount int, tail int) []byte {
		var buf bytes.Buffer
		_, err := WriteBitmap(&buf, make([]uint64, wordsCount))
		requireLib.NoError(t, err)
		buf.Write(make([]byte, tail))
		return buf.Bytes()
	}
	cases := []struct {
		name   string
		bitmap []byte
	}{
		{"short", encode(2, 0)},
		{"long", encode(4, 0)},
		{"partial trailing word", encode(3, 3)},
		{"partial last word", encode(2, 5)},
		{"empty", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// 150 bits need 3 words
			_, err := ReadBitmap(bytes.NewReader(tc.bitmap), 150)
			requireLib.ErrorIs(t, err, ErrBitmapSizeMismatch)
		})
	}

	_, err := ReadBitmap(bytes.NewReader(encode(1, 0)), 0)
	requireLib.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestEncodeInfoLayout(t *testing.T) {
	info := &Info{
		Description:              "a\"b\\c/d\n\t\x01",
		Size:                     9586,
		HashFunctions:            2,
		ExpectedInsertions:       1000,
		FalsePositiveProbability: 0.01,
		IsLogging:                true,
		Seeds:                    []string{"abc", "d/e"},
	}
	data, err := EncodeInfo(info)
	requireLib.NoError(t, err)
	requireLib.Equal(
		t,
		`{"description":"a\"b\\c\/d\n\t\u0001","size":9586,"hashFunctions":2,`+
			`"expectedInsertions":1000,"falsePositiveProbability":0.01,"isLogging":true,"seeds":["abc","d\/e"]}`,
		string(data),
	)
}

func TestInfoRoundTrip(t *testing.T) {
	require := requireLib.New(t)
	info := &Info{
		Description:              "nightly <backup> & \"restore\" / ünïcode\r\n",
		Size:                     9586,
		HashFunctions:            7,
		ExpectedInsertions:       1000,
		FalsePositiveProbability: 0.01,
		IsLogging:                false,
		Seeds:                    []string{"g", "f", "e", "d", "c", "b", "a"},
		Addressing:               AddressingLinear,
		BitmapChecksum:           "00112233aabbccdd",
	}
	data, err := EncodeInfo(info)
	require.NoError(err)
	require.Contains(string(data), `"addressing":"linear"`)

	decoded, err := DecodeInfo(data)
	require.NoError(err)
	require.Equal(info, decoded)
}

func TestDecodeLegacyInfo(t *testing.T) {
	require := requireLib.New(t)
	legacy := `{"description":"v1 \/ init","size":100,"hashFunctions":2,` +
		`"expectedInsertions":10,"falsePositiveProbability":1.0E-4,"isLogging":false,"seeds":["a1","b2"]}`
	info, err := DecodeInfo([]byte(legacy))
	require.NoError(err)
	require.Equal("v1 / init", info.Description)
	require.Equal(1.0e-4, info.FalsePositiveProbability)
	require.Equal([]string{"a1", "b2"}, info.Seeds)
	require.Equal(AddressingWordModulo, info.Addressing)
	require.Empty(info.BitmapChecksum)
}

func TestDecodeInfoRejectsInconsistentInfo(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"size":`,
		"seeds mismatch":  `{"size":100,"hashFunctions":3,"seeds":["a","b"]}`,
		"empty seed":      `{"size":100,"hashFunctions":2,"seeds":["a",""]}`,
		"zero size":       `{"size":0,"hashFunctions":1,"seeds":["a"]}`,
		"zero hashes":     `{"size":10,"hashFunctions":0,"seeds":[]}`,
		"unknown address": `{"size":10,"hashFunctions":1,"seeds":["a"],"addressing":"spiral"}`,
		"too many words":  `{"size":999999999999999,"hashFunctions":1,"seeds":["a"]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeInfo([]byte(data))
			requireLib.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

func TestDecodeSnapshotVerifiesChecksum(t *testing.T) {
	require := requireLib.New(t)
	snapshot := &Snapshot{
		Info: Info{
			Size:          128,
			HashFunctions: 1,
			Seeds:         []string{"salt"},
			Addressing:    AddressingLinear,
		},
		Words: []uint64{1, 2},
	}
	bitmap, info, err := encodeSnapshot(snapshot)
	require.NoError(err)
	require.NotEmpty(snapshot.Info.BitmapChecksum)

	decoded, err := decodeSnapshot(bitmap, info)
	require.NoError(err)
	require.Equal(snapshot.Words, decoded.Words)

	tampered := append([]byte(nil), bitmap...)
	tampered[7] ^= 0xFF
	_, err = decodeSnapshot(tampered, info)
	require.ErrorIs(err, ErrCorruptSnapshot)
}
