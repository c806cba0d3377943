package marketdata

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"minimart/infra/memory"
	"minimart/infra/sequence"
	"minimart/pkg/price"
)

// lcgMul and lcgInc are the constants of the fast-path linear congruential
// generator used for quantities and level spacing. Chosen only for speed,
// deliberately not the seeded math/rand source used for the price walk.
const (
	lcgMul = 1103515245
	lcgInc = 12345
)

func nextLcg(state uint64) uint64 {
	return state*lcgMul + lcgInc
}

// GeneratorConfig configures a Generator. Zero-value fields are replaced
// with the defaults below by NewGenerator.
type GeneratorConfig struct {
	BasePrice            float64
	Volatility           float64
	SpreadBps            float64
	UpdateInterval       time.Duration
	MinQuantity          uint64
	MaxQuantity          uint64
	MessagesPerBurst     int
	EnableActivitySpikes bool
	SpikeProbability     int // 0-100
	SpikeMultiplier      int
	SpikeDuration        time.Duration
}

// DefaultGeneratorConfig returns the reference defaults from the
// configuration table.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BasePrice:            150.0,
		Volatility:           0.02,
		SpreadBps:            2.0,
		UpdateInterval:       10 * time.Microsecond,
		MinQuantity:          100,
		MaxQuantity:          1000,
		MessagesPerBurst:     5,
		EnableActivitySpikes: false,
		SpikeProbability:     5,
		SpikeMultiplier:      10,
		SpikeDuration:        1000 * time.Microsecond,
	}
}

func (c *GeneratorConfig) applyDefaults() {
	d := DefaultGeneratorConfig()
	if c.BasePrice == 0 {
		c.BasePrice = d.BasePrice
	}
	if c.Volatility == 0 {
		c.Volatility = d.Volatility
	}
	if c.SpreadBps == 0 {
		c.SpreadBps = d.SpreadBps
	}
	if c.UpdateInterval == 0 {
		c.UpdateInterval = d.UpdateInterval
	}
	if c.MinQuantity == 0 {
		c.MinQuantity = d.MinQuantity
	}
	if c.MaxQuantity == 0 {
		c.MaxQuantity = d.MaxQuantity
	}
	if c.MessagesPerBurst == 0 {
		c.MessagesPerBurst = d.MessagesPerBurst
	}
	if c.SpikeProbability == 0 {
		c.SpikeProbability = d.SpikeProbability
	}
	if c.SpikeMultiplier == 0 {
		c.SpikeMultiplier = d.SpikeMultiplier
	}
	if c.SpikeDuration == 0 {
		c.SpikeDuration = d.SpikeDuration
	}
}

// generatorSlot is one security's generator-side walk state. claimed
// arbitrates ownership between concurrent Subscribe callers; active is
// the flag the producer loop scans, published only after securityId and
// the rest of the slot are initialized (see Store.Slot for the same
// claim-then-publish shape).
type generatorSlot struct {
	claimed      atomic.Bool
	active       atomic.Bool
	securityId   SecurityId
	currentPrice atomic.Uint64 // price.Price raw, seeded by Subscribe, then written only by the producer goroutine
	rng          *rand.Rand    // owned by the producer goroutine; not safe for concurrent use
	qtyState     uint64
	levelState   uint64
}

// Generator produces synthetic L2Update records for its subscribed
// securities on its own goroutine, optionally bursting during simulated
// activity spikes.
type Generator struct {
	cfg   GeneratorConfig
	slots []generatorSlot
	count atomic.Int64

	seq  *sequence.Sequencer
	pool *memory.Pool[L2Update]

	onUpdate func(*L2Update)

	// basePriceFor resolves a per-symbol reference price at subscribe
	// time; its result is used as-is, so any fallback for unknown symbols
	// is the resolver's own. Nil means every symbol uses cfg.BasePrice.
	// Mirrors the source's
	// get_security_base_price() -> SecuritySeeder::get_base_price() path.
	basePriceFor func(SecurityId) float64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	inSpike       bool
	spikeDeadline time.Time
}

// NewGenerator constructs a Generator with the given capacity (default
// DefaultStoreCapacity) and callback invoked once per produced record.
func NewGenerator(capacity int, cfg GeneratorConfig, onUpdate func(*L2Update)) *Generator {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	cfg.applyDefaults()
	return &Generator{
		cfg:      cfg,
		slots:    make([]generatorSlot, capacity),
		onUpdate: onUpdate,
		seq:      sequence.New(0),
		pool:     memory.NewPool(func() *L2Update { return &L2Update{} }),
	}
}

// SetBasePriceLookup installs fn as the per-symbol reference-price
// resolver used by Subscribe. When fn is non-nil its result is used for
// every symbol, so fn must supply its own fallback for symbols it does not
// recognize; cfg.BasePrice is used only when fn is nil. Must be called before
// Subscribe for the securities it should affect; it is not safe to call
// concurrently with Subscribe.
func (g *Generator) SetBasePriceLookup(fn func(SecurityId) float64) {
	g.basePriceFor = fn
}

func (g *Generator) find(id SecurityId) *generatorSlot {
	for i := range g.slots {
		if g.slots[i].active.Load() && g.slots[i].securityId == id {
			return &g.slots[i]
		}
	}
	return nil
}

func seedFromSymbol(id SecurityId) int64 {
	var seed uint32
	for i, b := range id {
		seed ^= uint32(b) << uint((i % 4) * 8)
	}
	if seed == 0 {
		seed = 1
	}
	return int64(seed)
}

// Subscribe claims a slot for id, seeding its price walk from
// basePriceFor(id) (or cfg.BasePrice if no lookup is installed) and its
// RNG deterministically from the symbol bytes. Returns false if id is
// already present or the generator is full.
func (g *Generator) Subscribe(id SecurityId) bool {
	if g.find(id) != nil {
		return false
	}
	for i := range g.slots {
		slot := &g.slots[i]
		if slot.claimed.CompareAndSwap(false, true) {
			slot.securityId = id
			base := g.cfg.BasePrice
			if g.basePriceFor != nil {
				base = g.basePriceFor(id)
			}
			slot.currentPrice.Store(price.FromDollars(base).Raw())
			seed := seedFromSymbol(id)
			slot.rng = rand.New(rand.NewSource(seed))
			slot.qtyState = uint64(seed)
			slot.levelState = uint64(seed) ^ 0x9e3779b97f4a7c15
			slot.active.Store(true)
			g.count.Add(1)
			return true
		}
	}
	return false
}

// Unsubscribe releases the slot matching id. Returns false if absent.
func (g *Generator) Unsubscribe(id SecurityId) bool {
	slot := g.find(id)
	if slot == nil {
		return false
	}
	slot.active.Store(false)
	slot.claimed.Store(false)
	g.count.Add(-1)
	return true
}

// Size returns the number of currently subscribed securities.
func (g *Generator) Size() int {
	return int(g.count.Load())
}

// Start launches the producer goroutine. It is a no-op (returns false) if
// already running.
func (g *Generator) Start() bool {
	if !g.running.CompareAndSwap(false, true) {
		return false
	}
	g.stopCh = make(chan struct{})
	g.wg.Add(1)
	go g.run()
	return true
}

// Stop halts the producer goroutine and waits for it to exit. Idempotent.
func (g *Generator) Stop() {
	if !g.running.CompareAndSwap(true, false) {
		return
	}
	close(g.stopCh)
	g.wg.Wait()
}

func (g *Generator) run() {
	defer g.wg.Done()
	var fastState uint64 = 0x2545F4914F6CDD1D

	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		fastState = nextLcg(fastState)
		if g.cfg.EnableActivitySpikes {
			if !g.inSpike {
				if int(fastState%100) < g.cfg.SpikeProbability {
					g.inSpike = true
					g.spikeDeadline = time.Now().Add(g.cfg.SpikeDuration)
				}
			} else if time.Now().After(g.spikeDeadline) {
				g.inSpike = false
			}
		}

		burst := g.cfg.MessagesPerBurst
		if g.inSpike {
			burst *= g.cfg.SpikeMultiplier
		}

		for i := range g.slots {
			slot := &g.slots[i]
			if !slot.active.Load() {
				continue
			}
			for n := 0; n < burst; n++ {
				msg := g.pool.Get()
				g.buildUpdate(slot, msg)
				if g.onUpdate != nil {
					g.onUpdate(msg)
				}
				g.pool.Put(msg)
			}
		}

		interval := g.cfg.UpdateInterval
		if g.inSpike {
			interval /= 2
		}
		if interval > 0 {
			time.Sleep(interval)
		}
	}
}

func (g *Generator) buildUpdate(slot *generatorSlot, msg *L2Update) {
	cur := price.FromRaw(slot.currentPrice.Load()).Dollars()

	// Bounded pseudo-random multiplicative step using the seeded RNG
	// (goroutine-confined, so unsynchronized access is safe).
	ret := (slot.rng.Float64()*2 - 1) * g.cfg.Volatility
	next := cur * (1 + ret)
	if next < 1.0 {
		next = 1.0
	}
	slot.currentPrice.Store(price.FromDollars(next).Raw())

	mid := next
	halfSpread := mid * g.cfg.SpreadBps / 10000 / 2
	bestBid := mid - halfSpread
	bestAsk := mid + halfSpread

	msg.Header = Header{SeqNo: uint32(g.seq.Next()), Length: L2UpdateSize, Type: MessageTypeL2}
	msg.SecurityId = slot.securityId

	bidPrice, askPrice := bestBid, bestAsk
	for lvl := 0; lvl < MaxDepth; lvl++ {
		slot.levelState = nextLcg(slot.levelState)
		tick := float64(slot.levelState%100+1) / 10000 * mid
		if lvl > 0 {
			bidPrice -= tick
		}
		if bidPrice < 0.01 {
			bidPrice = 0.01
		}

		slot.levelState = nextLcg(slot.levelState)
		tick2 := float64(slot.levelState%100+1) / 10000 * mid
		if lvl > 0 {
			askPrice += tick2
		}

		slot.qtyState = nextLcg(slot.qtyState)
		bidQty := g.cfg.MinQuantity + slot.qtyState%(g.cfg.MaxQuantity-g.cfg.MinQuantity+1)
		slot.qtyState = nextLcg(slot.qtyState)
		askQty := g.cfg.MinQuantity + slot.qtyState%(g.cfg.MaxQuantity-g.cfg.MinQuantity+1)

		msg.Bids[lvl] = PriceLevel{Price: price.FromDollars(bidPrice), Quantity: bidQty}
		msg.Asks[lvl] = PriceLevel{Price: price.FromDollars(askPrice), Quantity: askQty}
	}
	msg.NumBidLevels = MaxDepth
	msg.NumAskLevels = MaxDepth
}
