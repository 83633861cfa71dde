// Package protocol defines the wire messages of a Railverse session:
// JSON frames over a websocket, with the binary command envelope
// carried base64-encoded inside CMD frames.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeWelcome  = "WELCOME"
	TypeCmd      = "CMD"
	TypeTickDone = "TICKDONE"
	TypeResult   = "RESULT"
	TypeDesync   = "DESYNC"
	TypeQuit     = "QUIT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// HelloMsg opens a connection: the client announces itself and the
// company it wants to play.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	Company         uint8  `json:"company"`
	Spectator       bool   `json:"spectator,omitempty"`
}

// SessionParams are the facts a client needs to run the same
// simulation as the server.
type SessionParams struct {
	TickRateHz    int    `json:"tick_rate_hz"`
	TickDelay     uint64 `json:"tick_delay"`
	MapWidth      int    `json:"map_width"`
	MapHeight     int    `json:"map_height"`
	Seed          int64  `json:"seed"`
	StartingFunds int64  `json:"starting_funds"`
	MaxLoan       int64  `json:"max_loan"`
	CurrentTick   uint64 `json:"current_tick"`
}

// WelcomeMsg accepts a client into the session.
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Participant     uint32        `json:"participant"`
	Company         uint8         `json:"company"`
	Params          SessionParams `json:"params"`
	Error           string        `json:"error,omitempty"`
}

// CmdMsg carries one serialized command envelope. Client to server it
// is a submission (tick/seq/origin unset); server to clients it is a
// scheduled command.
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Envelope        string `json:"envelope"` // base64 of the binary envelope
}

// TickDoneMsg closes a tick: the server has scheduled exactly Count
// commands for Tick and will schedule no more. A peer may execute
// Tick once its buffered count matches.
type TickDoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Count           int    `json:"count"`
	// Digest is the server's state digest after executing DigestTick
	// (an earlier tick than Tick, since closing runs ahead of
	// execution by the scheduling delay). Peers compare it against
	// their own digest once they reach DigestTick.
	DigestTick uint64 `json:"digest_tick,omitempty"`
	Digest     uint64 `json:"digest,omitempty"`
}

// ResultMsg reports a rejected submission back to its origin only
// (accepted commands are confirmed by their scheduled execution).
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Summary         string `json:"summary"`
}

// DesyncMsg flags the session as fatally desynchronized.
type DesyncMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code,omitempty"`
	Tick            uint64 `json:"tick"`
	Participant     uint32 `json:"participant"`
	Reason          string `json:"reason"`
}

// QuitMsg announces an orderly disconnect; the session frees the
// participant's slot without waiting for the read timeout.
type QuitMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}
