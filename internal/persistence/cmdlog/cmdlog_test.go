package cmdlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"railverse.dev/internal/command"
)

func TestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	envs := []*command.Envelope{
		{Tile: 515, Cmd: uint32(command.CmdBuildObject), Company: 0, Origin: 2, Tick: 10, Seq: 0},
		{Cmd: uint32(command.CmdPlaceSign), Text: "depot north", Company: 1, Origin: 3, Tick: 10, Seq: 1},
		{Cmd: uint32(command.CmdSellVehicle), P1: 7, Aux: command.NewTargetList([]uint32{7, 9}), Origin: 2, Tick: 11, Seq: 0},
	}
	for _, env := range envs {
		if err := w.Record(env); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "commands", "*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("want one log file, got %v (%v)", files, err)
	}

	entries, err := Read(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != len(envs) {
		t.Fatalf("got %d entries, want %d", len(entries), len(envs))
	}
	for i, e := range entries {
		got, err := e.Envelope()
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		want := envs[i]
		if got.Cmd != want.Cmd || got.Tick != want.Tick || got.Seq != want.Seq ||
			got.Origin != want.Origin || got.Text != want.Text {
			t.Fatalf("entry %d diverged: got %+v want %+v", i, got, want)
		}
	}
	if entries[1].Text != "depot north" {
		t.Fatalf("readable text field missing: %+v", entries[1])
	}

	// The compressed file must not contain plaintext JSON.
	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("readfile: %v", err)
	}
	if strings.Contains(string(raw), "depot north") {
		t.Fatal("log file is not compressed")
	}
}
