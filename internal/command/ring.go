package command

import (
	"fmt"
	"strings"
)

// LogEntry is one executed command plus its outcome, retained for
// desync diagnostics.
type LogEntry struct {
	Tick   uint64
	Env    Envelope
	Result Cost
}

// LogRing is a bounded ring of executed commands. Appends evict the
// oldest entry. Two instances exist per session (main and auxiliary,
// selected by CmdLogAux) so high-frequency low-value commands do not
// evict diagnostically important ones. Appended only from the
// simulation goroutine; never replayed.
type LogRing struct {
	entries []LogEntry
	next    int
	filled  bool
}

func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		panic("command: log ring capacity must be positive")
	}
	return &LogRing{entries: make([]LogEntry, capacity)}
}

// Append records an executed envelope and its result.
func (r *LogRing) Append(tick uint64, e *Envelope, result Cost) {
	r.entries[r.next] = LogEntry{Tick: tick, Env: *e.Clone(), Result: result.Clone()}
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.filled = true
	}
}

// Len returns the number of retained entries.
func (r *LogRing) Len() int {
	if r.filled {
		return len(r.entries)
	}
	return r.next
}

// Entries returns the retained entries, oldest first.
func (r *LogRing) Entries() []LogEntry {
	out := make([]LogEntry, 0, r.Len())
	if r.filled {
		out = append(out, r.entries[r.next:]...)
	}
	out = append(out, r.entries[:r.next]...)
	return out
}

// Clear drops all retained entries.
func (r *LogRing) Clear() {
	r.next = 0
	r.filled = false
	for i := range r.entries {
		r.entries[i] = LogEntry{}
	}
}

// Dump renders the retained entries as a textual diagnostic report,
// newest last. reg provides command names; a nil registry falls back
// to raw ids.
func (r *LogRing) Dump(reg *Registry) string {
	var b strings.Builder
	for _, e := range r.Entries() {
		name := fmt.Sprintf("cmd %d", e.Env.Cmd&CmdIDMask)
		if reg != nil {
			name = reg.Name(e.Env.Cmd)
		}
		fmt.Fprintf(&b, "tick %d: %s company=%d origin=%d tile=%d p1=0x%08X p2=0x%08X p3=0x%016X -> %s\n",
			e.Tick, name, e.Env.Company, e.Env.Origin, e.Env.Tile, e.Env.P1, e.Env.P2, e.Env.P3, e.Result.Summary())
	}
	return b.String()
}
