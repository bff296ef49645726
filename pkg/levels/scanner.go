package levels

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrInvalidUTF8 is returned when a line is not valid UTF-8 under EncodingUTF8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8")
	// ErrLineTooLong is returned when a line exceeds Options.MaxLineBytes.
	ErrLineTooLong = errors.New("line exceeds max line length")
)

// ScanStats describes one scanned object.
type ScanStats struct {
	Lines        int64
	Unclassified int64
	// Bytes counts decoded line bytes, excluding line terminators.
	Bytes int64
}

// Scanner turns object bodies into level counts. A Scanner holds no
// per-object state and may be shared.
type Scanner struct {
	opts Options
}

// NewScanner validates opts and returns a Scanner.
func NewScanner(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{opts: opts}, nil
}

// Options returns the validated scanner options.
func (s *Scanner) Options() Options {
	return s.opts
}

// Scan reads r line by line and tallies the lines. key is only used to pick
// a decompressor when Compression is auto. The body is streamed, never held
// in memory as a whole.
func (s *Scanner) Scan(key string, r io.Reader) (Counts, ScanStats, error) {
	var counts Counts
	var stats ScanStats

	body, closeBody, err := s.decompress(key, r)
	if err != nil {
		return Counts{}, ScanStats{}, err
	}
	defer closeBody()

	body = s.decode(body)

	sc := bufio.NewScanner(body)
	initial := 64 * 1024
	if initial > s.opts.MaxLineBytes {
		initial = s.opts.MaxLineBytes
	}
	sc.Buffer(make([]byte, initial), s.opts.MaxLineBytes)
	sc.Split(scanLines)

	for sc.Scan() {
		line := sc.Bytes()
		if s.opts.Encoding == EncodingUTF8 && !utf8.Valid(line) {
			return Counts{}, ScanStats{}, fmt.Errorf("line %d: %w", stats.Lines+1, ErrInvalidUTF8)
		}
		stats.Lines++
		stats.Bytes += int64(len(line))

		if lvl, ok := Classify(line); ok {
			counts.Add(lvl)
		} else {
			stats.Unclassified++
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Counts{}, ScanStats{}, fmt.Errorf("line %d: %w", stats.Lines+1, ErrLineTooLong)
		}
		return Counts{}, ScanStats{}, fmt.Errorf("read line %d: %w", stats.Lines+1, err)
	}

	return counts, stats, nil
}

// scanLines is a bufio.SplitFunc that ends a line at "\n", "\r\n" or a
// lone "\r". The terminator is not part of the token.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// A "\r" at the end of the buffer may be the first half of "\r\n".
		if i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		if i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (s *Scanner) decompress(key string, r io.Reader) (io.Reader, func(), error) {
	codec := s.opts.Compression
	if codec == CompressionAuto {
		codec = CompressionForKey(key)
	}

	switch codec {
	case CompressionGzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gzr, func() { gzr.Close() }, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

func (s *Scanner) decode(r io.Reader) io.Reader {
	var enc encoding.Encoding
	switch s.opts.Encoding {
	case EncodingLatin1:
		enc = charmap.ISO8859_1
	case EncodingWindows1252:
		enc = charmap.Windows1252
	case EncodingUTF16LE:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case EncodingUTF16BE:
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	default:
		return r
	}
	return transform.NewReader(r, enc.NewDecoder())
}

// CompressionForKey infers the codec from a key suffix.
func CompressionForKey(key string) Compression {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".gzip"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}
