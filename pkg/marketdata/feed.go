package marketdata

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"minimart/pkg/ring"
)

// DefaultRingSize is the default capacity of the feed's SPSC ring.
const DefaultRingSize = 1024

// FeedConfig configures a Feed.
type FeedConfig struct {
	RingSize         int
	ConsumerYield    time.Duration
	EnableStatistics bool
}

// DefaultFeedConfig returns the reference defaults from the
// configuration table.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		RingSize:         DefaultRingSize,
		ConsumerYield:    time.Microsecond,
		EnableStatistics: true,
	}
}

// Statistics holds the feed's relaxed counters. All fields are updated
// with plain atomic operations; Statistics() returns a point-in-time
// snapshot, not a synchronization point.
type Statistics struct {
	MessagesProduced atomic.Uint64
	MessagesConsumed atomic.Uint64
	RingFullEvents   atomic.Uint64
	RingEmptyEvents  atomic.Uint64
	ConsumerYields   atomic.Uint64
	TotalLatencyNs   atomic.Uint64
	MaxLatencyNs     atomic.Uint64
}

func (s *Statistics) reset() {
	s.MessagesProduced.Store(0)
	s.MessagesConsumed.Store(0)
	s.RingFullEvents.Store(0)
	s.RingEmptyEvents.Store(0)
	s.ConsumerYields.Store(0)
	s.TotalLatencyNs.Store(0)
	s.MaxLatencyNs.Store(0)
}

// StatsView is an immutable point-in-time copy of Statistics, safe to
// hand to callers outside the core.
type StatsView struct {
	MessagesProduced uint64
	MessagesConsumed uint64
	RingFullEvents   uint64
	RingEmptyEvents  uint64
	ConsumerYields   uint64
	TotalLatencyNs   uint64
	MaxLatencyNs     uint64
}

// AverageLatencyNs returns the mean consumer-observed latency, or 0 if no
// messages have been consumed.
func (v StatsView) AverageLatencyNs() float64 {
	if v.MessagesConsumed == 0 {
		return 0
	}
	return float64(v.TotalLatencyNs) / float64(v.MessagesConsumed)
}

// Feed wires a Generator to a Store through a bounded SPSC ring, owning
// the consumer goroutine and end-to-end latency statistics. It is the
// single coordination point between the generator, the ring, and the
// store.
type Feed struct {
	cfg   FeedConfig
	gen   *Generator
	store *Store
	r     *ring.Ring[L2Update]
	stats Statistics

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewFeed constructs a Feed over the given generator and store.
func NewFeed(gen *Generator, store *Store, cfg FeedConfig) *Feed {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}
	f := &Feed{
		cfg:   cfg,
		gen:   gen,
		store: store,
		r:     ring.New[L2Update](cfg.RingSize),
	}
	gen.onUpdate = f.onGeneratorUpdate
	return f
}

func (f *Feed) onGeneratorUpdate(msg *L2Update) {
	if f.cfg.EnableStatistics {
		msg.TimestampNs = uint64(time.Now().UnixNano())
	}
	if f.r.TryPush(*msg) {
		f.stats.MessagesProduced.Add(1)
	} else {
		f.stats.RingFullEvents.Add(1)
	}
}

// Start resets statistics (if enabled), starts the generator, and spawns
// the consumer goroutine. Returns false if already running.
func (f *Feed) Start() bool {
	if !f.running.CompareAndSwap(false, true) {
		return false
	}
	if f.cfg.EnableStatistics {
		f.stats.reset()
	}
	f.stopCh = make(chan struct{})
	if !f.gen.Start() {
		f.running.Store(false)
		return false
	}
	f.wg.Add(1)
	go f.consume()
	return true
}

// Stop halts the generator and the consumer goroutine, waiting for both
// to exit. Idempotent and safe to call from a defer.
func (f *Feed) Stop() {
	if !f.running.CompareAndSwap(true, false) {
		return
	}
	f.gen.Stop()
	close(f.stopCh)
	f.wg.Wait()
}

// IsRunning reports whether the feed is currently running.
func (f *Feed) IsRunning() bool {
	return f.running.Load()
}

func (f *Feed) consume() {
	defer f.wg.Done()
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		msg, ok := f.r.TryPop()
		if !ok {
			f.stats.RingEmptyEvents.Add(1)
			if f.cfg.ConsumerYield > 0 {
				f.stats.ConsumerYields.Add(1)
				time.Sleep(f.cfg.ConsumerYield)
			} else {
				runtime.Gosched()
			}
			continue
		}

		if f.store.ApplyL2(&msg) && f.cfg.EnableStatistics {
			latency := uint64(time.Now().UnixNano()) - msg.TimestampNs
			f.stats.TotalLatencyNs.Add(latency)
			for {
				cur := f.stats.MaxLatencyNs.Load()
				if latency <= cur || f.stats.MaxLatencyNs.CompareAndSwap(cur, latency) {
					break
				}
			}
		}
		f.stats.MessagesConsumed.Add(1)
	}
}

// SetBasePriceLookup installs a per-symbol reference-price resolver on
// the underlying generator (see Generator.SetBasePriceLookup). Call
// before Subscribe for the securities it should affect.
func (f *Feed) SetBasePriceLookup(fn func(SecurityId) float64) {
	f.gen.SetBasePriceLookup(fn)
}

// Subscribe adds id to the store and the generator. On generator failure
// the store addition is rolled back.
func (f *Feed) Subscribe(id SecurityId) bool {
	if !f.store.Add(id) {
		return false
	}
	if !f.gen.Subscribe(id) {
		f.store.Remove(id)
		return false
	}
	return true
}

// Unsubscribe removes id from both the store and the generator, returning
// true iff both reported success.
func (f *Feed) Unsubscribe(id SecurityId) bool {
	storeOk := f.store.Remove(id)
	genOk := f.gen.Unsubscribe(id)
	return storeOk && genOk
}

// ListSubscribed returns the securities currently active in the store.
func (f *Feed) ListSubscribed() []SecurityId {
	return f.store.ListActive()
}

// Snapshot returns the store's current view of id.
func (f *Feed) Snapshot(id SecurityId) (SecuritySnapshot, bool) {
	return f.store.Snapshot(id)
}

// Statistics returns a point-in-time snapshot of the feed's counters.
func (f *Feed) Statistics() StatsView {
	return StatsView{
		MessagesProduced: f.stats.MessagesProduced.Load(),
		MessagesConsumed: f.stats.MessagesConsumed.Load(),
		RingFullEvents:   f.stats.RingFullEvents.Load(),
		RingEmptyEvents:  f.stats.RingEmptyEvents.Load(),
		ConsumerYields:   f.stats.ConsumerYields.Load(),
		TotalLatencyNs:   f.stats.TotalLatencyNs.Load(),
		MaxLatencyNs:     f.stats.MaxLatencyNs.Load(),
	}
}

// RingUtilization returns the fraction of the ring currently occupied, in
// [0,1].
func (f *Feed) RingUtilization() float64 {
	return float64(f.r.Size()) / float64(f.r.Capacity())
}
