package marketdata

import (
	"testing"

	"minimart/pkg/price"
)

func TestSecurityIdStringTrimsPadding(t *testing.T) {
	id := NewSecurityId("AAPL")
	if got, want := id.String(), "AAPL"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSecurityIdTruncatesLongSymbols(t *testing.T) {
	id := NewSecurityId("TOOLONGSYMBOL")
	if got, want := id.String(), "TOOLONGS"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestL2UpdateMarshalRoundTrip(t *testing.T) {
	in := &L2Update{
		Header:       Header{SeqNo: 7, Length: L2UpdateSize, Type: MessageTypeL2},
		SecurityId:   NewSecurityId("MSFT"),
		TimestampNs:  123456789,
		NumBidLevels: 2,
		NumAskLevels: 1,
	}
	in.Bids[0] = PriceLevel{Price: price.FromDollars(300.01), Quantity: 500}
	in.Bids[1] = PriceLevel{Price: price.FromDollars(299.99), Quantity: 200}
	in.Asks[0] = PriceLevel{Price: price.FromDollars(300.05), Quantity: 150}

	buf, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary returned error: %v", err)
	}
	if len(buf) != L2UpdateSize {
		t.Fatalf("marshaled length = %d, want %d", len(buf), L2UpdateSize)
	}

	var out L2Update
	if err := out.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary returned error: %v", err)
	}

	if out.Header.SeqNo != in.Header.SeqNo || out.Header.Type != in.Header.Type {
		t.Errorf("header mismatch: got %+v, want %+v", out.Header, in.Header)
	}
	if out.SecurityId != in.SecurityId {
		t.Errorf("security id mismatch: got %v, want %v", out.SecurityId, in.SecurityId)
	}
	if out.TimestampNs != in.TimestampNs {
		t.Errorf("timestamp mismatch: got %d, want %d", out.TimestampNs, in.TimestampNs)
	}
	if out.Bids != in.Bids || out.Asks != in.Asks {
		t.Error("level data did not round-trip")
	}
	if out.NumBidLevels != in.NumBidLevels || out.NumAskLevels != in.NumAskLevels {
		t.Error("level counts did not round-trip")
	}
}

func TestUnmarshalBinaryRejectsWrongSize(t *testing.T) {
	var out L2Update
	if err := out.UnmarshalBinary(make([]byte, L2UpdateSize-1)); err == nil {
		t.Error("expected error for undersized buffer")
	}
	if err := out.UnmarshalBinary(make([]byte, L2UpdateSize+1)); err == nil {
		t.Error("expected error for oversized buffer")
	}
}

func TestWireSizeConstants(t *testing.T) {
	if L2UpdateSize != 192 {
		t.Errorf("L2UpdateSize = %d, want 192", L2UpdateSize)
	}
}
