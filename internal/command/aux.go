package command

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// AuxKind tags the closed set of auxiliary payload shapes. Commands
// that need variable-length structured data (a list of targets, an
// opaque blob) carry it here; the payload survives network transit and
// command-log retention.
type AuxKind uint8

const (
	AuxNone AuxKind = iota
	AuxTargetList
	AuxRawBlob
)

// MaxAuxSize bounds a serialized auxiliary payload on the wire.
const MaxAuxSize = 16 * 1024

// Aux is an auxiliary command payload. A payload either holds decoded
// data, or a read-only view over previously-serialized bytes (wire
// form); Serialize of a wire view reproduces the original bytes
// exactly, so re-serialization is byte-identical.
type Aux struct {
	Kind    AuxKind
	Targets []uint32 // AuxTargetList
	Blob    []byte   // AuxRawBlob

	wire []byte // non-nil for a deserialization view
}

// NewTargetList builds a target-list payload.
func NewTargetList(targets []uint32) *Aux {
	return &Aux{Kind: AuxTargetList, Targets: append([]uint32(nil), targets...)}
}

// NewRawBlob builds an opaque blob payload.
func NewRawBlob(b []byte) *Aux {
	return &Aux{Kind: AuxRawBlob, Blob: append([]byte(nil), b...)}
}

// Clone returns an independent deep copy.
func (a *Aux) Clone() *Aux {
	if a == nil {
		return nil
	}
	c := &Aux{Kind: a.Kind}
	c.Targets = append([]uint32(nil), a.Targets...)
	c.Blob = append([]byte(nil), a.Blob...)
	c.wire = append([]byte(nil), a.wire...)
	return c
}

// Serialize appends the wire form of the payload to buf.
func (a *Aux) Serialize(buf *bytes.Buffer) {
	if a.wire != nil {
		buf.Write(a.wire)
		return
	}
	var tmp [binary.MaxVarintLen64]byte
	buf.WriteByte(byte(a.Kind))
	switch a.Kind {
	case AuxTargetList:
		n := binary.PutUvarint(tmp[:], uint64(len(a.Targets)))
		buf.Write(tmp[:n])
		for _, t := range a.Targets {
			n = binary.PutUvarint(tmp[:], uint64(t))
			buf.Write(tmp[:n])
		}
	case AuxRawBlob:
		n := binary.PutUvarint(tmp[:], uint64(len(a.Blob)))
		buf.Write(tmp[:n])
		buf.Write(a.Blob)
	}
}

// AuxFromWire builds a read-only view of a previously-serialized
// payload. The decoded fields are populated; the original bytes are
// retained so Serialize round-trips exactly.
func AuxFromWire(raw []byte) (*Aux, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty aux payload")
	}
	if len(raw) > MaxAuxSize {
		return nil, fmt.Errorf("aux payload too large: %d", len(raw))
	}
	a := &Aux{Kind: AuxKind(raw[0]), wire: append([]byte(nil), raw...)}
	body := raw[1:]
	switch a.Kind {
	case AuxTargetList:
		count, n := binary.Uvarint(body)
		if n <= 0 {
			return nil, fmt.Errorf("bad target count")
		}
		body = body[n:]
		if count > MaxAuxSize {
			return nil, fmt.Errorf("target count too large: %d", count)
		}
		a.Targets = make([]uint32, 0, count)
		for i := uint64(0); i < count; i++ {
			v, n := binary.Uvarint(body)
			if n <= 0 || v > 0xFFFFFFFF {
				return nil, fmt.Errorf("bad target at %d", i)
			}
			body = body[n:]
			a.Targets = append(a.Targets, uint32(v))
		}
		if len(body) != 0 {
			return nil, fmt.Errorf("trailing aux bytes: %d", len(body))
		}
	case AuxRawBlob:
		size, n := binary.Uvarint(body)
		if n <= 0 {
			return nil, fmt.Errorf("bad blob length")
		}
		body = body[n:]
		if uint64(len(body)) != size {
			return nil, fmt.Errorf("blob length mismatch: have %d want %d", len(body), size)
		}
		a.Blob = append([]byte(nil), body...)
	default:
		return nil, fmt.Errorf("unknown aux kind %d", a.Kind)
	}
	return a, nil
}
