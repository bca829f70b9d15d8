package tx

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Decode errors — malformed on-the-wire bytes (spec.md §7 "Decode error").
var (
	ErrTruncated      = errors.New("tx: truncated input")
	ErrTrailingBytes  = errors.New("tx: unexpected trailing bytes after transaction")
	ErrLengthOverflow = errors.New("tx: declared length exceeds remaining input")
)

// Encode serializes t in the canonical little-endian layout required by
// spec.md §4.3:
//
//	version(4) | |vin|(4) | vin[]{ prevout.hash(32) prevout.index(4) |scriptSig|(4) scriptSig sequence(4) } |
//	|vout|(4) | vout[]{ value(8) |scriptPubKey|(4) scriptPubKey } | lockTime(4)
//
// AssetID is not part of the canonical wire layout named in spec.md §4.3 —
// it is validator-internal bookkeeping (spec.md §3's TxIn/TxOut definitions
// list it, but §4.3's byte layout doesn't include it, matching
// original_source/layer1-core/tx/transaction.cpp's Serialize). It is
// derived per-input/output from the referenced/created UTXO by the
// validator instead of being carried on the wire.
func (t *Transaction) Encode() []byte {
	buf := make([]byte, 0, 128+64*len(t.Inputs)+64*len(t.Outputs))
	buf = binary.LittleEndian.AppendUint32(buf, t.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(in.ScriptSig)))
		buf = append(buf, in.ScriptSig...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.ScriptPubKey)))
		buf = append(buf, out.ScriptPubKey...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, t.LockTime)
	return buf
}

// Decode parses a transaction from its canonical serialization. It fails if
// any declared length is not honored or if trailing bytes remain after the
// last field, per spec.md §4.3.
func Decode(b []byte) (*Transaction, error) {
	r := &reader{buf: b}

	version, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}

	vinCount, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("vin count: %w", err)
	}
	inputs := make([]TxIn, 0, vinCount)
	for i := uint32(0); i < vinCount; i++ {
		var in TxIn
		txid, err := r.bytes(32)
		if err != nil {
			return nil, fmt.Errorf("vin[%d].prevout.hash: %w", i, err)
		}
		copy(in.PrevOut.TxID[:], txid)
		if in.PrevOut.Index, err = r.u32(); err != nil {
			return nil, fmt.Errorf("vin[%d].prevout.index: %w", i, err)
		}
		sigLen, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("vin[%d].scriptSig length: %w", i, err)
		}
		if in.ScriptSig, err = r.bytes(int(sigLen)); err != nil {
			return nil, fmt.Errorf("vin[%d].scriptSig: %w", i, err)
		}
		if in.Sequence, err = r.u32(); err != nil {
			return nil, fmt.Errorf("vin[%d].sequence: %w", i, err)
		}
		inputs = append(inputs, in)
	}

	voutCount, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("vout count: %w", err)
	}
	outputs := make([]TxOut, 0, voutCount)
	for i := uint32(0); i < voutCount; i++ {
		var out TxOut
		if out.Value, err = r.u64(); err != nil {
			return nil, fmt.Errorf("vout[%d].value: %w", i, err)
		}
		spkLen, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("vout[%d].scriptPubKey length: %w", i, err)
		}
		if out.ScriptPubKey, err = r.bytes(int(spkLen)); err != nil {
			return nil, fmt.Errorf("vout[%d].scriptPubKey: %w", i, err)
		}
		outputs = append(outputs, out)
	}

	lockTime, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("locktime: %w", err)
	}

	if !r.atEnd() {
		return nil, ErrTrailingBytes
	}

	return &Transaction{
		Version:  version,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: lockTime,
	}, nil
}

// reader is a minimal bounds-checked little-endian cursor over a byte slice.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrLengthOverflow
	}
	if r.pos+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) atEnd() bool {
	return r.pos == len(r.buf)
}
