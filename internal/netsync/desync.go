package netsync

import (
	"context"
	"time"

	"railverse.dev/internal/command"
)

// DesyncReport is the persisted record of a fatal state divergence.
// The interesting forensics live in the command log next to it; the
// report pins down when and for whom the session died.
type DesyncReport struct {
	At          time.Time
	Tick        uint64
	Participant uint32
	Reason      string
	// Digest is the authoritative state digest at the last tick the
	// server executed.
	Digest uint64
}

// DesyncReporter stores desync reports. Implemented by
// persistence/reportdb.
type DesyncReporter interface {
	Report(ctx context.Context, r DesyncReport) error
}

// CommandSink receives every scheduled envelope in acceptance order,
// before execution. Implemented by persistence/cmdlog; the stream is
// sufficient to replay the session from the seed.
type CommandSink interface {
	Record(env *command.Envelope) error
}
