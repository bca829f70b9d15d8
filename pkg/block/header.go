package block

import (
	"encoding/binary"

	"github.com/parthenon-labs/chaincore/pkg/hash"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// HeaderSize is the fixed on-the-wire length of a Header (spec.md §3):
// version(4) + prevBlockHash(32) + merkleRoot(32) + time(4) + bits(4) +
// nonce(4).
const HeaderSize = 4 + 32 + 32 + 4 + 4 + 4

// Header is the consensus-critical block header: exactly the six fields
// spec.md §3 names, nothing more. The teacher's Header additionally carried
// Height, Difficulty (a uint64 instead of a compact bits field) and
// ValidatorSig for its PoA mode; none of those belong on the wire here —
// height/work are BlockMeta bookkeeping (internal/forkresolver) and there is
// no validator-signed consensus mode in this spec.
type Header struct {
	Version       uint32     `json:"version"`
	PrevBlockHash types.Hash `json:"prevBlockHash"`
	MerkleRoot    types.Hash `json:"merkleRoot"`
	Time          uint32     `json:"time"`
	Bits          uint32     `json:"bits"`
	Nonce         uint32     `json:"nonce"`
}

// Encode serializes the header in its canonical little-endian layout.
func (h *Header) Encode() []byte {
	buf := make([]byte, 0, HeaderSize)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.PrevBlockHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Time)
	buf = binary.LittleEndian.AppendUint32(buf, h.Bits)
	buf = binary.LittleEndian.AppendUint32(buf, h.Nonce)
	return buf
}

// DecodeHeader parses a Header from its canonical serialization.
func DecodeHeader(b []byte) (*Header, bool) {
	if len(b) != HeaderSize {
		return nil, false
	}
	h := &Header{
		Version: binary.LittleEndian.Uint32(b[0:4]),
	}
	copy(h.PrevBlockHash[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	h.Time = binary.LittleEndian.Uint32(b[68:72])
	h.Bits = binary.LittleEndian.Uint32(b[72:76])
	h.Nonce = binary.LittleEndian.Uint32(b[76:80])
	return h, true
}

// Hash returns the block hash: TaggedHash("BLOCK", serialize(header)).
func (h *Header) Hash() types.Hash {
	return hash.Tagged("BLOCK", h.Encode())
}
