package levels

import (
	"fmt"
	"strings"
)

// Compression selects how an object body is decompressed before scanning.
type Compression string

const (
	// CompressionAuto picks a codec from the object key suffix.
	CompressionAuto Compression = "auto"
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Encoding selects the character encoding of the log lines.
type Encoding string

const (
	// EncodingUTF8 rejects objects that contain invalid UTF-8.
	EncodingUTF8        Encoding = "utf-8"
	EncodingLatin1      Encoding = "latin1"
	EncodingWindows1252 Encoding = "windows-1252"
	EncodingUTF16LE     Encoding = "utf-16le"
	EncodingUTF16BE     Encoding = "utf-16be"
	// EncodingRaw scans bytes as-is without validation.
	EncodingRaw Encoding = "raw"
)

// DefaultMaxLineBytes bounds a single line during scanning.
const DefaultMaxLineBytes = 1 << 20

// Options controls how objects are decoded and scanned.
type Options struct {
	Compression  Compression
	Encoding     Encoding
	MaxLineBytes int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Compression:  CompressionAuto,
		Encoding:     EncodingUTF8,
		MaxLineBytes: DefaultMaxLineBytes,
	}
}

// Validate fills zero values with defaults and rejects unknown settings.
func (o *Options) Validate() error {
	if o.Compression == "" {
		o.Compression = CompressionAuto
	}
	if o.Encoding == "" {
		o.Encoding = EncodingUTF8
	}
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = DefaultMaxLineBytes
	}

	o.Compression = Compression(strings.ToLower(string(o.Compression)))
	switch o.Compression {
	case CompressionAuto, CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return fmt.Errorf("unknown compression %q", o.Compression)
	}

	enc, err := ParseEncoding(string(o.Encoding))
	if err != nil {
		return err
	}
	o.Encoding = enc
	return nil
}

// ParseEncoding normalizes an encoding name, accepting common aliases.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "utf-8", "utf8", "":
		return EncodingUTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	case "windows-1252", "cp1252":
		return EncodingWindows1252, nil
	case "utf-16le", "utf16le":
		return EncodingUTF16LE, nil
	case "utf-16be", "utf16be":
		return EncodingUTF16BE, nil
	case "raw", "binary":
		return EncodingRaw, nil
	default:
		return "", fmt.Errorf("unknown encoding %q", s)
	}
}
