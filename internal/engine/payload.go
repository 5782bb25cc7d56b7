package engine

import (
	"math/rand/v2"

	"wtmt/internal/codec"
)

// payloadAlphabet keeps generated values compressible, like real text columns.
const payloadAlphabet = "abcdefghijklmnop"

// makePayload deterministically generates the raw value for (key, version),
// so Verify can recompute what should be stored.
func makePayload(key, version int64, size int) []byte {
	r := rand.New(rand.NewPCG(uint64(key), uint64(version)))
	buf := make([]byte, size)
	for i := 0; i < size; {
		word := r.Uint64()
		for j := 0; j < 16 && i < size; j++ {
			buf[i] = payloadAlphabet[word&0xf]
			word >>= 4
			i++
		}
	}
	return buf
}

// encodedValue is what one row stores.
type encodedValue struct {
	data  []byte
	codec codec.Type
	sum   uint64
	raw   int
}

func encodeValue(t codec.Type, key, version int64, size int) (encodedValue, error) {
	raw := makePayload(key, version, size)
	data, err := codec.Compress(t, raw)
	if err != nil {
		return encodedValue{}, err
	}
	return encodedValue{data: data, codec: t, sum: codec.Checksum(raw), raw: len(raw)}, nil
}
