// Package codec encodes workload payloads before they reach the storage engine.
//
// Each stored value carries a one-byte codec tag and an xxh3 checksum of the raw
// payload so rows written under one compression setting can be read back and
// verified under another.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"
)

// ErrUnknownType is returned for codec names or tags that are not recognized.
var ErrUnknownType = errors.New("unknown codec type")

// Type identifies a compression algorithm. Values are persisted, do not renumber.
type Type uint8

const (
	None   Type = 0x0
	Snappy Type = 0x1
	LZ4    Type = 0x4
	Zstd   Type = 0x7
)

// String returns the configuration name of the codec.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is a supported codec.
func (t Type) Valid() bool {
	switch t {
	case None, Snappy, LZ4, Zstd:
		return true
	}
	return false
}

// Names lists the accepted configuration names.
func Names() []string {
	return []string{"none", "snappy", "lz4", "zstd"}
}

// ParseType maps a configuration name to a Type. The empty string means None.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return None, nil
	case "snappy":
		return Snappy, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("%w: %q (valid: %v)", ErrUnknownType, name, Names())
	}
}

// Compress encodes data with the given codec.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case None:
		return data, nil
	case Snappy:
		return snappy.Encode(nil, data), nil
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		return buf.Bytes(), nil
	case Zstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
}

// Decompress reverses Compress.
func Decompress(t Type, data []byte) ([]byte, error) {
	switch t {
	case None:
		return data, nil
	case Snappy:
		return snappy.Decode(nil, data)
	case LZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	case Zstd:
		return zstdDecoder.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
}

// Checksum returns the xxh3 hash of the raw payload.
func Checksum(data []byte) uint64 {
	return xxh3.Hash(data)
}

// Shared zstd state. EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)
