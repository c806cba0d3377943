// Package marketdata implements the lock-free security store, the random
// L2 update generator, and the feed orchestrator that wires one to the
// other through an SPSC ring.
package marketdata

import (
	"encoding/binary"
	"unsafe"

	"minimart/pkg/price"
)

// SecurityIdLen is the fixed width of a SecurityId in bytes.
const SecurityIdLen = 8

// SecurityId is an 8-byte symbol, right-padded with zero bytes. Equality
// is byte-exact.
type SecurityId [SecurityIdLen]byte

// NewSecurityId truncates or right-pads sym to SecurityIdLen bytes.
func NewSecurityId(sym string) SecurityId {
	var id SecurityId
	n := copy(id[:], sym)
	_ = n
	return id
}

// String returns the symbol with trailing zero bytes trimmed.
func (id SecurityId) String() string {
	n := 0
	for n < len(id) && id[n] != 0 {
		n++
	}
	return string(id[:n])
}

// MessageType identifies the payload kind in a record header.
type MessageType uint16

// MessageTypeL2 is the only message type this system currently emits.
const MessageTypeL2 MessageType = 1

// Quantity is a plain unsigned level size.
type Quantity = uint64

// PriceLevel is a single (price, quantity) pair at one depth. Exactly 16
// bytes: 8 for the Price, 8 for the Quantity.
type PriceLevel struct {
	Price    price.Price
	Quantity Quantity
}

const priceLevelSize = 16

// MaxDepth is the number of levels carried per side in an L2Update.
const MaxDepth = 5

// Header is the 8-byte fixed prefix of every record on the wire: a
// monotonic sequence number, the record length, and a type tag.
type Header struct {
	SeqNo  uint32
	Length uint16
	Type   MessageType
}

const headerSize = 8

// L2Update is a fixed 192-byte level-2 update: a header, a security id, a
// nanosecond timestamp, up to 5 bid levels (descending) and 5 ask levels
// (ascending), the populated counts for each side, and trailing padding
// to keep the record 8-byte aligned.
type L2Update struct {
	Header       Header
	SecurityId   SecurityId
	TimestampNs  uint64
	Bids         [MaxDepth]PriceLevel
	Asks         [MaxDepth]PriceLevel
	NumBidLevels uint8
	NumAskLevels uint8
	_            [6]byte // padding to 8-byte alignment
}

// L2UpdateSize is the exact wire size of L2Update, checked at init time
// the same way the C++ origin checks it with a static_assert.
const L2UpdateSize = headerSize + SecurityIdLen + 8 + MaxDepth*priceLevelSize*2 + 1 + 1 + 6

func init() {
	if L2UpdateSize != 192 {
		panic("marketdata: L2Update wire size constant is wrong")
	}
	if unsafe.Sizeof(L2Update{}) != 192 {
		panic("marketdata: L2Update in-memory size is not 192 bytes")
	}
	if unsafe.Sizeof(PriceLevel{}) != priceLevelSize {
		panic("marketdata: PriceLevel size is not 16 bytes")
	}
}

// MarshalBinary encodes the record using native byte order. The exact
// byte layout is implementation-defined in-process; any future network
// transport must fix endianness explicitly (out of scope here).
func (m *L2Update) MarshalBinary() ([]byte, error) {
	buf := make([]byte, L2UpdateSize)
	binary.NativeEndian.PutUint32(buf[0:4], m.Header.SeqNo)
	binary.NativeEndian.PutUint16(buf[4:6], m.Header.Length)
	binary.NativeEndian.PutUint16(buf[6:8], uint16(m.Header.Type))
	copy(buf[8:16], m.SecurityId[:])
	binary.NativeEndian.PutUint64(buf[16:24], m.TimestampNs)

	off := 24
	for _, lvl := range m.Bids {
		binary.NativeEndian.PutUint64(buf[off:off+8], lvl.Price.Raw())
		binary.NativeEndian.PutUint64(buf[off+8:off+16], lvl.Quantity)
		off += priceLevelSize
	}
	for _, lvl := range m.Asks {
		binary.NativeEndian.PutUint64(buf[off:off+8], lvl.Price.Raw())
		binary.NativeEndian.PutUint64(buf[off+8:off+16], lvl.Quantity)
		off += priceLevelSize
	}
	buf[off] = m.NumBidLevels
	buf[off+1] = m.NumAskLevels
	return buf, nil
}

// UnmarshalBinary decodes a record previously produced by MarshalBinary.
func (m *L2Update) UnmarshalBinary(buf []byte) error {
	if len(buf) != L2UpdateSize {
		return errInvalidWireSize
	}
	m.Header.SeqNo = binary.NativeEndian.Uint32(buf[0:4])
	m.Header.Length = binary.NativeEndian.Uint16(buf[4:6])
	m.Header.Type = MessageType(binary.NativeEndian.Uint16(buf[6:8]))
	copy(m.SecurityId[:], buf[8:16])
	m.TimestampNs = binary.NativeEndian.Uint64(buf[16:24])

	off := 24
	for i := range m.Bids {
		m.Bids[i].Price = price.FromRaw(binary.NativeEndian.Uint64(buf[off : off+8]))
		m.Bids[i].Quantity = binary.NativeEndian.Uint64(buf[off+8 : off+16])
		off += priceLevelSize
	}
	for i := range m.Asks {
		m.Asks[i].Price = price.FromRaw(binary.NativeEndian.Uint64(buf[off : off+8]))
		m.Asks[i].Quantity = binary.NativeEndian.Uint64(buf[off+8 : off+16])
		off += priceLevelSize
	}
	m.NumBidLevels = buf[off]
	m.NumAskLevels = buf[off+1]
	return nil
}

type wireError string

func (e wireError) Error() string { return string(e) }

const errInvalidWireSize = wireError("marketdata: buffer is not L2UpdateSize bytes")
