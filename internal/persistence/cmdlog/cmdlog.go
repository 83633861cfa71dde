// Package cmdlog persists the scheduled command stream as compressed
// JSONL. Together with the map seed the stream is a full replay of a
// session, which makes it the primary desync forensics artifact.
package cmdlog

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"railverse.dev/internal/command"
)

// Entry is one scheduled envelope in acceptance order. Raw is the
// exact wire encoding; the named fields are for humans grepping the
// log.
type Entry struct {
	At     string `json:"at"`
	Tick   uint64 `json:"tick"`
	Seq    uint32 `json:"seq"`
	Origin uint32 `json:"origin"`
	Cmd    uint32 `json:"cmd"`
	Tile   uint32 `json:"tile"`
	P1     uint32 `json:"p1"`
	P2     uint32 `json:"p2"`
	P3     uint64 `json:"p3"`
	Text   string `json:"text,omitempty"`
	Raw    string `json:"raw"` // base64 of the binary envelope
}

// Writer appends entries to hourly-rotated zstd-compressed JSONL
// files. Implements netsync.CommandSink.
type Writer struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: filepath.Join(baseDir, "commands"), prefix: "commands"}
}

func (w *Writer) Record(env *command.Envelope) error {
	raw, err := env.MarshalBinary()
	if err != nil {
		return err
	}
	return w.write(Entry{
		At:     time.Now().UTC().Format(time.RFC3339Nano),
		Tick:   env.Tick,
		Seq:    env.Seq,
		Origin: uint32(env.Origin),
		Cmd:    env.Cmd,
		Tile:   uint32(env.Tile),
		P1:     env.P1,
		P2:     env.P2,
		P3:     env.P3,
		Text:   env.Text,
		Raw:    base64.StdEncoding.EncodeToString(raw),
	})
}

func (w *Writer) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Read decodes every entry from one log file, oldest first.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// Envelope rebuilds the wire envelope from a log entry.
func (e Entry) Envelope() (*command.Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Raw)
	if err != nil {
		return nil, err
	}
	var env command.Envelope
	if err := env.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &env, nil
}
