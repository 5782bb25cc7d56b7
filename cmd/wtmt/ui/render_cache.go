package ui

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zeebo/xxh3"
)

// ComputeKey hashes render inputs into a cache key. Unsupported types are skipped.
func ComputeKey(inputs ...interface{}) uint64 {
	buf := make([]byte, 0, 64)
	for _, input := range inputs {
		switch v := input.(type) {
		case string:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(len(v)))
			buf = append(buf, v...)
		case int:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		case int64:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		case float64:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		case bool:
			if v {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case time.Time:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v.UnixNano()))
		}
	}
	return xxh3.Hash(buf)
}

// CachedRender keeps the last rendered output and recomputes it only when
// the key inputs change.
type CachedRender struct {
	lastKey    uint64
	lastResult string
	valid      bool
	renders    int
}

// Render returns the cached output for keyInputs, calling renderFunc on a miss.
func (cr *CachedRender) Render(keyInputs []interface{}, renderFunc func() string) string {
	key := ComputeKey(keyInputs...)
	if cr.valid && key == cr.lastKey {
		return cr.lastResult
	}
	cr.lastResult = renderFunc()
	cr.lastKey = key
	cr.valid = true
	cr.renders++
	return cr.lastResult
}

// Renders counts cache misses.
func (cr *CachedRender) Renders() int { return cr.renders }

// Invalidate forces the next Render to recompute.
func (cr *CachedRender) Invalidate() {
	cr.valid = false
	cr.lastResult = ""
}
