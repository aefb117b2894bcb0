package saltedbloom

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Info is the textual half of a snapshot (info.txt). Seeds are positional:
// Seeds[i] keys hash function i.
type Info struct {
	Description              string
	Size                     int64
	HashFunctions            int
	ExpectedInsertions       int64
	FalsePositiveProbability float64
	IsLogging                bool
	Seeds                    []string
	Addressing               Addressing
	// BitmapChecksum is the xxh3 digest of the bitmap artifact. Empty for
	// snapshots written without one; those are loaded unverified.
	BitmapChecksum string
}

// Snapshot is everything needed to rebuild a filter.
type Snapshot struct {
	Info  Info
	Words []uint64
}

type infoJSON struct {
	Description              jsonText   `json:"description"`
	Size                     int64      `json:"size"`
	HashFunctions            int        `json:"hashFunctions"`
	ExpectedInsertions       int64      `json:"expectedInsertions"`
	FalsePositiveProbability float64    `json:"falsePositiveProbability"`
	IsLogging                bool       `json:"isLogging"`
	Seeds                    []jsonText `json:"seeds"`
	Addressing               Addressing `json:"addressing,omitempty"`
	BitmapChecksum           string     `json:"bitmapChecksum,omitempty"`
}

// jsonText is encoded with quote, backslash, solidus and control characters
// escaped, as the info file has always been written.
type jsonText string

func (t jsonText) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(t)+2)
	buf = append(buf, '"')
	for _, r := range string(t) {
		switch r {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '/':
			buf = append(buf, '\\', '/')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			if r < 0x20 {
				buf = append(buf, `\u00`...)
				buf = append(buf, hexDigits[r>>4], hexDigits[r&0xF])
				continue
			}
			buf = utf8.AppendRune(buf, r)
		}
	}
	return append(buf, '"'), nil
}

const hexDigits = "0123456789abcdef"

// EncodeInfo renders the info artifact.
func EncodeInfo(info *Info) ([]byte, error) {
	wire := infoJSON{
		Description:              jsonText(info.Description),
		Size:                     info.Size,
		HashFunctions:            info.HashFunctions,
		ExpectedInsertions:       info.ExpectedInsertions,
		FalsePositiveProbability: info.FalsePositiveProbability,
		IsLogging:                info.IsLogging,
		Seeds:                    make([]jsonText, len(info.Seeds)),
		Addressing:               info.Addressing,
		BitmapChecksum:           info.BitmapChecksum,
	}
	for i, seed := range info.Seeds {
		wire.Seeds[i] = jsonText(seed)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return nil, errors.Wrap(err, "bloom filter info encoding failed")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeInfo parses the info artifact and checks that it describes a usable filter.
func DecodeInfo(data []byte) (*Info, error) {
	var wire infoJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "info parsing failed: %v", err)
	}
	info := &Info{
		Description:              string(wire.Description),
		Size:                     wire.Size,
		HashFunctions:            wire.HashFunctions,
		ExpectedInsertions:       wire.ExpectedInsertions,
		FalsePositiveProbability: wire.FalsePositiveProbability,
		IsLogging:                wire.IsLogging,
		Seeds:                    make([]string, len(wire.Seeds)),
		Addressing:               wire.Addressing,
		BitmapChecksum:           wire.BitmapChecksum,
	}
	for i, seed := range wire.Seeds {
		info.Seeds[i] = string(seed)
	}
	if err := info.validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// validate checks that info describes a usable filter.
func (info *Info) validate() error {
	if info.Size < 1 {
		return errors.Wrapf(ErrCorruptSnapshot, "bits count must be positive, got %d", info.Size)
	}
	if int64(WordsCount(info.Size)) > MaxWordsCount {
		return errors.Wrapf(ErrCorruptSnapshot, "bits count %d exceeds the maximum of %d words", info.Size, MaxWordsCount)
	}
	if info.HashFunctions < 1 {
		return errors.Wrapf(ErrCorruptSnapshot, "hash functions count must be positive, got %d", info.HashFunctions)
	}
	if err := validateSalts(info.Seeds, info.HashFunctions); err != nil {
		return err
	}
	if !info.Addressing.known() {
		return errors.Wrapf(ErrCorruptSnapshot, "unknown addressing %q", string(info.Addressing))
	}
	return nil
}

func (s *Snapshot) validate() error {
	if err := s.Info.validate(); err != nil {
		return err
	}
	if !fitsWordsCount(len(s.Words), s.Info.Size, s.Info.Addressing) {
		return errors.Wrapf(
			ErrBitmapSizeMismatch,
			"%d words don't hold %d bits",
			len(s.Words),
			s.Info.Size,
		)
	}
	return nil
}

// paddedWordsCount is bitsCount/64+1. Word-modulo bitmaps whose bits count
// is a multiple of 64 were written with this many words, one more than needed.
func paddedWordsCount(bitsCount int64) int {
	return int(bitsCount/wordBits + 1)
}

func fitsWordsCount(n int, bitsCount int64, addressing Addressing) bool {
	if n == WordsCount(bitsCount) {
		return true
	}
	return addressing == AddressingWordModulo && n == paddedWordsCount(bitsCount)
}

// WriteBitmap writes every word as 8 big-endian bytes, in order, with no
// header or trailer.
func WriteBitmap(w io.Writer, words []uint64) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for idx, word := range words {
		n, err := bw.Write(uint64ToByte(word))
		written += int64(n)
		if err != nil {
			return written, errors.Wrapf(err, "bitmap word %d write failed", idx)
		}
	}
	if err := bw.Flush(); err != nil {
		return written, errors.Wrap(err, "bitmap flush failed")
	}
	return written, nil
}

// ReadBitmap reads a bitmap declared to hold bitsCount bits. The stream must
// contain exactly WordsCount(bitsCount) words.
func ReadBitmap(r io.Reader, bitsCount int64) ([]uint64, error) {
	if bitsCount < 1 {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "bits count must be positive, got %d", bitsCount)
	}
	return readWords(r, WordsCount(bitsCount))
}

func readWords(r io.Reader, wordsCount int) ([]uint64, error) {
	words := make([]uint64, wordsCount)
	br := bufio.NewReader(r)
	chunk := make([]byte, wordBytes)
	for idx := range words {
		if _, err := io.ReadFull(br, chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, errors.Wrapf(
					ErrBitmapSizeMismatch,
					"bitmap ended after %d of %d words",
					idx,
					len(words),
				)
			}
			return nil, errors.Wrap(err, "bitmap read failed")
		}
		words[idx] = binary.BigEndian.Uint64(chunk)
	}
	extra, err := br.Read(chunk)
	if extra > 0 {
		return nil, errors.Wrapf(
			ErrBitmapSizeMismatch,
			"bitmap holds more than %d words",
			len(words),
		)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "bitmap read failed")
	}
	return words, nil
}

// encodeSnapshot renders both artifacts and stamps the bitmap checksum into the info.
func encodeSnapshot(snapshot *Snapshot) (bitmap, info []byte, err error) {
	var buf bytes.Buffer
	buf.Grow(len(snapshot.Words) * wordBytes)
	if _, err = WriteBitmap(&buf, snapshot.Words); err != nil {
		return nil, nil, err
	}
	bitmap = buf.Bytes()
	snapshot.Info.BitmapChecksum = bitmapChecksum(bitmap)
	info, err = EncodeInfo(&snapshot.Info)
	if err != nil {
		return nil, nil, err
	}
	return bitmap, info, nil
}

// decodeSnapshot parses both artifacts, rejecting a bitmap that doesn't match
// the checksum recorded in the info.
func decodeSnapshot(bitmap, infoData []byte) (*Snapshot, error) {
	info, err := DecodeInfo(infoData)
	if err != nil {
		return nil, err
	}
	if info.BitmapChecksum != "" {
		if actual := bitmapChecksum(bitmap); actual != info.BitmapChecksum {
			return nil, errors.Wrapf(
				ErrCorruptSnapshot,
				"bitmap checksum %s doesn't match %q recorded in info",
				actual,
				info.BitmapChecksum,
			)
		}
	}
	wordsCount := WordsCount(info.Size)
	if len(bitmap)%wordBytes == 0 && fitsWordsCount(len(bitmap)/wordBytes, info.Size, info.Addressing) {
		wordsCount = len(bitmap) / wordBytes
	}
	words, err := readWords(bytes.NewReader(bitmap), wordsCount)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Info: *info, Words: words}, nil
}
