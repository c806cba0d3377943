package marketdata

import (
	"sync"
	"testing"

	"minimart/pkg/price"
)

func TestAddRejectsDuplicate(t *testing.T) {
	s := NewStore(4)
	id := NewSecurityId("AAPL")
	if !s.Add(id) {
		t.Fatal("first add should succeed")
	}
	if s.Add(id) {
		t.Error("duplicate add should fail")
	}
	if s.Size() != 1 {
		t.Errorf("size = %d, want 1", s.Size())
	}
}

func TestAddRejectsWhenFull(t *testing.T) {
	s := NewStore(2)
	s.Add(NewSecurityId("AAPL"))
	s.Add(NewSecurityId("MSFT"))
	if s.Add(NewSecurityId("GOOGL")) {
		t.Error("add into full store should fail")
	}
}

func TestRemoveThenReAdd(t *testing.T) {
	s := NewStore(2)
	id := NewSecurityId("AAPL")
	s.Add(id)
	if !s.Remove(id) {
		t.Fatal("remove should succeed")
	}
	if s.Remove(id) {
		t.Error("double remove should fail")
	}
	if s.Size() != 0 {
		t.Errorf("size = %d, want 0", s.Size())
	}
	if !s.Add(id) {
		t.Error("re-add after remove should succeed")
	}
}

func TestSnapshotUnknownSecurity(t *testing.T) {
	s := NewStore(4)
	if _, ok := s.Snapshot(NewSecurityId("NOPE")); ok {
		t.Error("snapshot of unknown security should fail")
	}
}

func TestSnapshotEmptyBook(t *testing.T) {
	s := NewStore(4)
	id := NewSecurityId("AAPL")
	s.Add(id)
	snap, ok := s.Snapshot(id)
	if !ok {
		t.Fatal("snapshot should succeed")
	}
	if snap.NumBidLevels != 0 || snap.NumAskLevels != 0 {
		t.Error("fresh security should have an empty book")
	}
	if snap.SpreadBps() != 0 {
		t.Error("empty book spread should be 0")
	}
}

func TestApplyL2UpdatesBestBidAsk(t *testing.T) {
	s := NewStore(4)
	id := NewSecurityId("AAPL")
	s.Add(id)

	msg := &L2Update{SecurityId: id, TimestampNs: 42}
	msg.Bids[0] = PriceLevel{Price: price.FromDollars(100.00), Quantity: 500}
	msg.Bids[1] = PriceLevel{Price: price.FromDollars(99.99), Quantity: 300}
	msg.Asks[0] = PriceLevel{Price: price.FromDollars(100.02), Quantity: 400}
	msg.NumBidLevels = 2
	msg.NumAskLevels = 1

	if !s.ApplyL2(msg) {
		t.Fatal("apply should succeed for active security")
	}

	snap, _ := s.Snapshot(id)
	if snap.BestBid != price.FromDollars(100.00) {
		t.Errorf("best bid = %v, want 100.00", snap.BestBid.Dollars())
	}
	if snap.BestAsk != price.FromDollars(100.02) {
		t.Errorf("best ask = %v, want 100.02", snap.BestAsk.Dollars())
	}
	if snap.NumBidLevels != 2 || snap.NumAskLevels != 1 {
		t.Errorf("levels = (%d,%d), want (2,1)", snap.NumBidLevels, snap.NumAskLevels)
	}
	if snap.LastUpdateNs != 42 {
		t.Errorf("timestamp = %d, want 42", snap.LastUpdateNs)
	}
}

func TestApplyL2UnknownSecurityFails(t *testing.T) {
	s := NewStore(4)
	msg := &L2Update{SecurityId: NewSecurityId("NOPE")}
	if s.ApplyL2(msg) {
		t.Error("apply to unknown security should fail")
	}
}

func TestApplyL2ShrinkingLevelsClearsStale(t *testing.T) {
	s := NewStore(4)
	id := NewSecurityId("AAPL")
	s.Add(id)

	full := &L2Update{SecurityId: id}
	for i := 0; i < MaxDepth; i++ {
		full.Bids[i] = PriceLevel{Price: price.FromDollars(float64(100 - i)), Quantity: 100}
	}
	full.NumBidLevels = MaxDepth
	s.ApplyL2(full)

	shrink := &L2Update{SecurityId: id}
	shrink.Bids[0] = PriceLevel{Price: price.FromDollars(50), Quantity: 10}
	shrink.NumBidLevels = 1
	s.ApplyL2(shrink)

	snap, _ := s.Snapshot(id)
	if snap.NumBidLevels != 1 {
		t.Fatalf("num bid levels = %d, want 1", snap.NumBidLevels)
	}
	for i := 1; i < MaxDepth; i++ {
		if snap.Bids[i] != (PriceLevel{}) {
			t.Errorf("stale level %d not cleared: %+v", i, snap.Bids[i])
		}
	}
}

func TestListActiveAndClear(t *testing.T) {
	s := NewStore(4)
	s.Add(NewSecurityId("AAPL"))
	s.Add(NewSecurityId("MSFT"))
	if got := len(s.ListActive()); got != 2 {
		t.Errorf("len(ListActive()) = %d, want 2", got)
	}
	s.Clear()
	if s.Size() != 0 {
		t.Errorf("size after clear = %d, want 0", s.Size())
	}
	if len(s.ListActive()) != 0 {
		t.Error("ListActive after clear should be empty")
	}
}

func TestContains(t *testing.T) {
	s := NewStore(4)
	id := NewSecurityId("AAPL")
	if s.Contains(id) {
		t.Error("should not contain before add")
	}
	s.Add(id)
	if !s.Contains(id) {
		t.Error("should contain after add")
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := NewStore(8)
	id := NewSecurityId("AAPL")
	s.Add(id)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 10_000; i++ {
			msg := &L2Update{SecurityId: id, TimestampNs: uint64(i)}
			msg.Bids[0] = PriceLevel{Price: price.FromRaw(uint64(i)), Quantity: 1}
			msg.NumBidLevels = 1
			s.ApplyL2(msg)
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 10_000; i++ {
			if _, ok := s.Snapshot(id); !ok {
				t.Error("snapshot should always find the active security")
				return
			}
		}
	}()

	wg.Wait()
}

func TestMidPriceFallsBackToLastTrade(t *testing.T) {
	snap := SecuritySnapshot{LastTradePrice: price.FromDollars(10)}
	if snap.MidPrice() != price.FromDollars(10) {
		t.Errorf("MidPrice fallback = %v, want 10", snap.MidPrice().Dollars())
	}
}

func BenchmarkApplyL2(b *testing.B) {
	s := NewStore(DefaultStoreCapacity)
	id := NewSecurityId("AAPL")
	s.Add(id)

	msg := &L2Update{SecurityId: id}
	for i := 0; i < MaxDepth; i++ {
		msg.Bids[i] = PriceLevel{Price: price.FromDollars(100 - float64(i)*0.01), Quantity: 100}
		msg.Asks[i] = PriceLevel{Price: price.FromDollars(100 + float64(i)*0.01), Quantity: 100}
	}
	msg.NumBidLevels = MaxDepth
	msg.NumAskLevels = MaxDepth

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg.TimestampNs = uint64(i)
		if !s.ApplyL2(msg) {
			b.Fatal("apply should succeed for active security")
		}
	}
}

func BenchmarkSnapshot(b *testing.B) {
	s := NewStore(DefaultStoreCapacity)
	id := NewSecurityId("AAPL")
	s.Add(id)

	msg := &L2Update{SecurityId: id}
	for i := 0; i < MaxDepth; i++ {
		msg.Bids[i] = PriceLevel{Price: price.FromDollars(100 - float64(i)*0.01), Quantity: 100}
		msg.Asks[i] = PriceLevel{Price: price.FromDollars(100 + float64(i)*0.01), Quantity: 100}
	}
	msg.NumBidLevels = MaxDepth
	msg.NumAskLevels = MaxDepth
	s.ApplyL2(msg)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := s.Snapshot(id); !ok {
			b.Fatal("snapshot should always find the active security")
		}
	}
}
