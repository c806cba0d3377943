package marketdata

import (
	"sync/atomic"

	"minimart/pkg/price"
)

// DefaultStoreCapacity is the default fixed slot count for a Store.
const DefaultStoreCapacity = 256

// cacheLine is used to pad each slot so unrelated securities never share a
// cache line between the single writer and the many readers.
const cacheLine = 64

// bookSide holds one side's depth-5 L2 levels. num is published with
// release after the plain levels array has been fully written, so a
// reader that observes a given num sees levels at least as new as the
// write that published it; a copy taken while the next update is being
// written may mix levels from both updates.
type bookSide struct {
	num    atomic.Uint32 // really a uint8, widened for atomic alignment
	levels [MaxDepth]PriceLevel
}

// Slot is one security's storage. It is cache-line aligned via padding so
// that writes to one slot never invalidate a reader's cache line for an
// unrelated slot.
type Slot struct {
	// claimed arbitrates ownership of an inactive slot between concurrent
	// writers. It is purely internal: readers never look at it. active is
	// the one flag readers observe, and is published only once the slot's
	// fields below are fully initialized, so active=true always implies a
	// consistent securityId (invariant 8).
	claimed atomic.Bool
	active  atomic.Bool

	securityId SecurityId // immutable while active

	bestBid        atomic.Uint64
	bestAsk        atomic.Uint64
	lastTradePrice atomic.Uint64
	lastUpdateNs   atomic.Uint64

	bids bookSide
	asks bookSide

	updateCount atomic.Uint64
	totalVolume atomic.Uint64

	_ [cacheLine]byte
}

func (s *Slot) matches(id SecurityId) bool {
	return s.active.Load() && s.securityId == id
}

// SecuritySnapshot is a consistent-enough point-in-time copy of a slot's
// observable fields. Fields are read independently (see Store.Snapshot),
// so this is bounded-torn, not strictly atomic, by design.
type SecuritySnapshot struct {
	SecurityId     SecurityId
	BestBid        price.Price
	BestAsk        price.Price
	LastTradePrice price.Price
	LastUpdateNs   uint64
	NumBidLevels   uint8
	NumAskLevels   uint8
	Bids           [MaxDepth]PriceLevel
	Asks           [MaxDepth]PriceLevel
	UpdateCount    uint64
	TotalVolume    uint64
}

// MidPrice returns the mean of best bid and ask, or LastTradePrice if
// either side is empty.
func (s SecuritySnapshot) MidPrice() price.Price {
	if s.BestBid.IsZero() || s.BestAsk.IsZero() {
		return s.LastTradePrice
	}
	return price.Mid(s.BestBid, s.BestAsk)
}

// SpreadBps returns the bid/ask spread in basis points, or 0 for an empty
// book.
func (s SecuritySnapshot) SpreadBps() float64 {
	return price.SpreadBps(s.BestBid, s.BestAsk)
}

// Store is a fixed-capacity, lock-free table of per-security slots. Add
// and Remove may be called from any goroutine; ApplyL2 must be called
// from exactly one goroutine; Snapshot, Contains, Size, and ListActive
// may be called concurrently from any number of reader goroutines.
type Store struct {
	slots       []Slot
	activeCount atomic.Int64
}

// NewStore allocates a Store with the given fixed capacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &Store{slots: make([]Slot, capacity)}
}

func (st *Store) find(id SecurityId) *Slot {
	for i := range st.slots {
		if st.slots[i].matches(id) {
			return &st.slots[i]
		}
	}
	return nil
}

// Add claims an inactive slot for id and initializes it. It returns false
// if id is already present or no inactive slot exists. Initialization
// happens before the slot is published: claimed arbitrates which writer
// owns the slot, and active is only set to true once securityId and the
// rest of the slot's fields hold their initial values, so a reader that
// observes active=true always sees the initialized securityId.
func (st *Store) Add(id SecurityId) bool {
	if st.find(id) != nil {
		return false
	}

	for i := range st.slots {
		slot := &st.slots[i]
		if slot.claimed.CompareAndSwap(false, true) {
			slot.securityId = id
			slot.bestBid.Store(0)
			slot.bestAsk.Store(0)
			slot.lastTradePrice.Store(0)
			slot.lastUpdateNs.Store(0)
			slot.updateCount.Store(0)
			slot.totalVolume.Store(0)
			slot.bids.num.Store(0)
			slot.asks.num.Store(0)
			slot.active.Store(true)
			st.activeCount.Add(1)
			return true
		}
	}
	return false
}

// Remove deactivates the slot matching id. It returns false if id is not
// currently active.
func (st *Store) Remove(id SecurityId) bool {
	slot := st.find(id)
	if slot == nil {
		return false
	}
	slot.active.Store(false)
	slot.claimed.Store(false)
	st.activeCount.Add(-1)
	return true
}

// ApplyL2 applies an update to the matching active slot. It returns false
// if no active slot matches the record's SecurityId. Must be called from
// exactly one goroutine (the feed's consumer).
func (st *Store) ApplyL2(msg *L2Update) bool {
	slot := st.find(msg.SecurityId)
	if slot == nil {
		return false
	}

	slot.lastUpdateNs.Store(msg.TimestampNs)

	if msg.NumBidLevels > 0 {
		slot.bestBid.Store(msg.Bids[0].Price.Raw())
	}
	if msg.NumAskLevels > 0 {
		slot.bestAsk.Store(msg.Asks[0].Price.Raw())
	}

	applySide(&slot.bids, msg.Bids[:], msg.NumBidLevels)
	applySide(&slot.asks, msg.Asks[:], msg.NumAskLevels)

	slot.updateCount.Add(1)
	return true
}

func applySide(side *bookSide, levels []PriceLevel, numLevels uint8) {
	n := numLevels
	if n > MaxDepth {
		n = MaxDepth
	}
	for i := uint8(0); i < n; i++ {
		side.levels[i] = levels[i]
	}
	for i := n; i < MaxDepth; i++ {
		side.levels[i] = PriceLevel{}
	}
	side.num.Store(uint32(n))
}

// Snapshot copies the matching slot's observable fields. It returns false
// if id is not currently active. The result is bounded-torn: each field
// is loaded separately while ApplyL2 may be writing (see SecuritySnapshot
// and SnapshotConsistent).
func (st *Store) Snapshot(id SecurityId) (SecuritySnapshot, bool) {
	slot := st.find(id)
	if slot == nil {
		return SecuritySnapshot{}, false
	}

	var snap SecuritySnapshot
	snap.SecurityId = slot.securityId
	snap.LastUpdateNs = slot.lastUpdateNs.Load()
	snap.BestBid = price.FromRaw(slot.bestBid.Load())
	snap.BestAsk = price.FromRaw(slot.bestAsk.Load())
	snap.LastTradePrice = price.FromRaw(slot.lastTradePrice.Load())
	snap.UpdateCount = slot.updateCount.Load()
	snap.TotalVolume = slot.totalVolume.Load()
	snap.NumBidLevels = uint8(slot.bids.num.Load())
	snap.NumAskLevels = uint8(slot.asks.num.Load())
	snap.Bids = slot.bids.levels
	snap.Asks = slot.asks.levels
	return snap, true
}

// SnapshotConsistent is the optional seqlock-flavored extension mentioned
// in the design notes: it retries (bounded) if LastUpdateNs changed while
// the rest of the snapshot was being read, trading latency for strict
// read consistency. maxRetries of 0 behaves like Snapshot.
func (st *Store) SnapshotConsistent(id SecurityId, maxRetries int) (SecuritySnapshot, bool) {
	for attempt := 0; ; attempt++ {
		slot := st.find(id)
		if slot == nil {
			return SecuritySnapshot{}, false
		}
		before := slot.lastUpdateNs.Load()
		snap, ok := st.Snapshot(id)
		if !ok {
			return SecuritySnapshot{}, false
		}
		after := slot.lastUpdateNs.Load()
		if before == after || attempt >= maxRetries {
			return snap, true
		}
	}
}

// Contains reports whether id currently has an active slot.
func (st *Store) Contains(id SecurityId) bool {
	return st.find(id) != nil
}

// Size returns the number of currently active securities.
func (st *Store) Size() int {
	return int(st.activeCount.Load())
}

// ListActive returns the SecurityIds of all currently active slots.
func (st *Store) ListActive() []SecurityId {
	out := make([]SecurityId, 0, st.Size())
	for i := range st.slots {
		if st.slots[i].active.Load() {
			out = append(out, st.slots[i].securityId)
		}
	}
	return out
}

// Clear deactivates every slot.
func (st *Store) Clear() {
	for i := range st.slots {
		st.slots[i].active.Store(false)
		st.slots[i].claimed.Store(false)
	}
	st.activeCount.Store(0)
}

// Capacity returns the store's fixed slot count.
func (st *Store) Capacity() int {
	return len(st.slots)
}
