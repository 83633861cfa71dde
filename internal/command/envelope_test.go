package command

import (
	"bytes"
	"strings"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	cases := []Envelope{
		{Tile: 1234, P1: 7, P2: 0xDEADBEEF, P3: 1 << 40, Cmd: uint32(CmdBuildObject) | CmdNetworkRouted, Callback: 2, Company: 3, Origin: 12, Tick: 99, Seq: 4},
		{Tile: InvalidTile, Cmd: uint32(CmdRenameSign), Text: "Main Street Depot"},
		{Cmd: uint32(CmdSellVehicle), Aux: NewTargetList([]uint32{9, 8, 7, 0xFFFFFFFF})},
		{Cmd: uint32(CmdChangeSetting), Text: "economy.town_growth", Aux: NewRawBlob([]byte{0, 1, 2, 250})},
	}
	for i, in := range cases {
		b, err := in.MarshalBinary()
		if err != nil {
			t.Fatalf("case %d: marshal: %v", i, err)
		}
		var out Envelope
		if err := out.UnmarshalBinary(b); err != nil {
			t.Fatalf("case %d: unmarshal: %v", i, err)
		}
		if out.Tile != in.Tile || out.P1 != in.P1 || out.P2 != in.P2 || out.P3 != in.P3 ||
			out.Cmd != in.Cmd || out.Text != in.Text || out.Company != in.Company ||
			out.Callback != in.Callback ||
			out.Origin != in.Origin || out.Tick != in.Tick || out.Seq != in.Seq {
			t.Fatalf("case %d: fields diverged after round trip", i)
		}
		if (in.Aux == nil) != (out.Aux == nil) {
			t.Fatalf("case %d: aux presence diverged", i)
		}

		b2, err := out.MarshalBinary()
		if err != nil {
			t.Fatalf("case %d: re-marshal: %v", i, err)
		}
		if !bytes.Equal(b, b2) {
			t.Fatalf("case %d: re-serialization not byte-identical", i)
		}
	}
}

func TestEnvelopeRejectsOutOfRangeID(t *testing.T) {
	in := Envelope{Cmd: uint32(CmdBuildTrack)}
	b, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Patch the packed cmd field to an id beyond the dense range.
	b[20] = byte(CmdEnd) + 1

	var out Envelope
	if err := out.UnmarshalBinary(b); err == nil {
		t.Fatalf("expected out-of-range id rejection")
	}
}

func TestEnvelopeTextBound(t *testing.T) {
	in := Envelope{Cmd: uint32(CmdRenameSign), Text: strings.Repeat("x", MaxCmdTextLength+1)}
	if _, err := in.MarshalBinary(); err == nil {
		t.Fatalf("expected oversized text rejection")
	}
}

func TestAuxSerializeDeserializeByteIdentical(t *testing.T) {
	orig := NewTargetList([]uint32{1, 2, 3, 500, 70000})

	var first bytes.Buffer
	orig.Serialize(&first)

	view, err := AuxFromWire(first.Bytes())
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if len(view.Targets) != 5 || view.Targets[4] != 70000 {
		t.Fatalf("decoded targets wrong: %v", view.Targets)
	}

	var second bytes.Buffer
	view.Serialize(&second)
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("re-serialization of a wire view must be byte-identical")
	}

	// Clones keep the wire bytes too.
	var third bytes.Buffer
	view.Clone().Serialize(&third)
	if !bytes.Equal(first.Bytes(), third.Bytes()) {
		t.Fatalf("clone lost wire fidelity")
	}
}

func TestLogRingEviction(t *testing.T) {
	r := NewLogRing(3)
	for i := 0; i < 5; i++ {
		env := &Envelope{Cmd: uint32(CmdBuildTrack), P1: uint32(i)}
		r.Append(uint64(i), env, NewCost())
	}
	entries := r.Entries()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Env.P1 != 2 || entries[2].Env.P1 != 4 {
		t.Fatalf("eviction order wrong: first=%d last=%d", entries[0].Env.P1, entries[2].Env.P1)
	}
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("clear failed")
	}
}
