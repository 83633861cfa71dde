package command

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MaxCmdTextLength bounds the free-form text an envelope may carry.
const MaxCmdTextLength = 512

// Envelope is the unit of command replication: everything one command
// invocation needs to execute identically on every peer, plus the
// metadata the queue uses for deterministic ordering.
type Envelope struct {
	Tile Tile
	P1   uint32
	P2   uint32
	P3   uint64
	Cmd  uint32 // command id in the low byte, flag bits above it
	Text string
	Aux  *Aux

	// Callback names a UI follow-up. It travels with the envelope (as
	// a table index, like the rest of the metadata) but is only ever
	// invoked on the originating peer.
	Callback CallbackID

	// Replication metadata, assigned by the authoritative peer.
	Company CompanyID
	Origin  ParticipantID
	Tick    uint64
	Seq     uint32
}

// ID returns the command id with flag bits stripped.
func (e *Envelope) ID() CommandID { return CommandID(e.Cmd & CmdIDMask) }

// Clone returns a deep copy (the aux payload is never shared).
func (e *Envelope) Clone() *Envelope {
	c := *e
	c.Aux = e.Aux.Clone()
	return &c
}

// MarshalBinary encodes the envelope for network transit.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	if len(e.Text) > MaxCmdTextLength {
		return nil, fmt.Errorf("command text too long: %d", len(e.Text))
	}
	var buf bytes.Buffer
	var w [8]byte

	binary.LittleEndian.PutUint32(w[:4], uint32(e.Tile))
	buf.Write(w[:4])
	binary.LittleEndian.PutUint32(w[:4], e.P1)
	buf.Write(w[:4])
	binary.LittleEndian.PutUint32(w[:4], e.P2)
	buf.Write(w[:4])
	binary.LittleEndian.PutUint64(w[:8], e.P3)
	buf.Write(w[:8])
	binary.LittleEndian.PutUint32(w[:4], e.Cmd)
	buf.Write(w[:4])
	buf.WriteByte(byte(e.Company))
	buf.WriteByte(byte(e.Callback))
	binary.LittleEndian.PutUint32(w[:4], uint32(e.Origin))
	buf.Write(w[:4])
	binary.LittleEndian.PutUint64(w[:8], e.Tick)
	buf.Write(w[:8])
	binary.LittleEndian.PutUint32(w[:4], e.Seq)
	buf.Write(w[:4])

	binary.LittleEndian.PutUint16(w[:2], uint16(len(e.Text)))
	buf.Write(w[:2])
	buf.WriteString(e.Text)

	var aux bytes.Buffer
	if e.Aux != nil {
		e.Aux.Serialize(&aux)
	}
	if aux.Len() > MaxAuxSize {
		return nil, fmt.Errorf("aux payload too large: %d", aux.Len())
	}
	binary.LittleEndian.PutUint16(w[:2], uint16(aux.Len()))
	buf.Write(w[:2])
	buf.Write(aux.Bytes())

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes an envelope received from the network. The
// command id is bounds-checked against the dense range before anything
// else looks at it.
func (e *Envelope) UnmarshalBinary(b []byte) error {
	const fixed = 4 + 4 + 4 + 8 + 4 + 1 + 1 + 4 + 8 + 4 + 2
	if len(b) < fixed {
		return fmt.Errorf("short envelope: %d bytes", len(b))
	}
	e.Tile = Tile(binary.LittleEndian.Uint32(b[0:]))
	e.P1 = binary.LittleEndian.Uint32(b[4:])
	e.P2 = binary.LittleEndian.Uint32(b[8:])
	e.P3 = binary.LittleEndian.Uint64(b[12:])
	e.Cmd = binary.LittleEndian.Uint32(b[20:])
	e.Company = CompanyID(b[24])
	e.Callback = CallbackID(b[25])
	e.Origin = ParticipantID(binary.LittleEndian.Uint32(b[26:]))
	e.Tick = binary.LittleEndian.Uint64(b[30:])
	e.Seq = binary.LittleEndian.Uint32(b[38:])

	if e.Cmd&CmdIDMask >= uint32(CmdEnd) {
		return fmt.Errorf("command id %d out of range", e.Cmd&CmdIDMask)
	}

	textLen := int(binary.LittleEndian.Uint16(b[42:]))
	rest := b[fixed:]
	if textLen > MaxCmdTextLength {
		return fmt.Errorf("command text too long: %d", textLen)
	}
	if len(rest) < textLen+2 {
		return fmt.Errorf("truncated envelope text")
	}
	e.Text = string(rest[:textLen])
	rest = rest[textLen:]

	auxLen := int(binary.LittleEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) != auxLen {
		return fmt.Errorf("aux length mismatch: have %d want %d", len(rest), auxLen)
	}
	e.Aux = nil
	if auxLen > 0 {
		aux, err := AuxFromWire(rest)
		if err != nil {
			return fmt.Errorf("aux payload: %w", err)
		}
		e.Aux = aux
	}
	return nil
}
