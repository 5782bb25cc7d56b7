package engine

import "sync/atomic"

// TickerType identifies an engine counter.
type TickerType int

const (
	// TickerKeysInserted counts rows written by Insert.
	TickerKeysInserted TickerType = iota
	// TickerKeysUpdated counts rows rewritten by Update.
	TickerKeysUpdated
	// TickerKeysDeleted counts rows removed by Delete.
	TickerKeysDeleted
	// TickerTablesDropped counts successful Drop calls.
	TickerTablesDropped
	// TickerBytesWritten is raw payload bytes handed to the engine.
	TickerBytesWritten
	// TickerBytesStored is encoded (compressed) bytes actually stored.
	TickerBytesStored
	// TickerBatches counts committed write transactions.
	TickerBatches
	// TickerErrors counts failed engine calls.
	TickerErrors
	// TickerKeysVerified counts rows checked by Verify.
	TickerKeysVerified

	tickerCount
)

var tickerNames = [tickerCount]string{
	"keys.inserted", "keys.updated", "keys.deleted", "tables.dropped",
	"bytes.written", "bytes.stored", "batches", "errors", "keys.verified",
}

func (t TickerType) String() string {
	if t >= 0 && t < tickerCount {
		return tickerNames[t]
	}
	return "unknown"
}

// Statistics holds the engine's monotonically increasing counters.
type Statistics struct {
	tickers [tickerCount]atomic.Uint64
}

// Record adds n to a ticker.
func (s *Statistics) Record(t TickerType, n uint64) {
	if t >= 0 && t < tickerCount {
		s.tickers[t].Add(n)
	}
}

// Get returns a ticker's current value.
func (s *Statistics) Get(t TickerType) uint64 {
	if t >= 0 && t < tickerCount {
		return s.tickers[t].Load()
	}
	return 0
}

// Snapshot copies every ticker.
func (s *Statistics) Snapshot() StatsSnapshot {
	var snap StatsSnapshot
	for i := range snap.Tickers {
		snap.Tickers[i] = s.tickers[i].Load()
	}
	return snap
}

// StatsSnapshot is a point-in-time copy of Statistics.
type StatsSnapshot struct {
	Tickers [tickerCount]uint64
}

// Get returns one ticker from the snapshot.
func (s StatsSnapshot) Get(t TickerType) uint64 {
	if t >= 0 && t < tickerCount {
		return s.Tickers[t]
	}
	return 0
}

// Ops is the number of item-level operations the engine has completed.
func (s StatsSnapshot) Ops() uint64 {
	return s.Tickers[TickerKeysInserted] + s.Tickers[TickerKeysUpdated] +
		s.Tickers[TickerKeysDeleted] + s.Tickers[TickerTablesDropped]
}

// Tickers lists all ticker types in order.
func Tickers() []TickerType {
	out := make([]TickerType, tickerCount)
	for i := range out {
		out[i] = TickerType(i)
	}
	return out
}
