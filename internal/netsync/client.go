package netsync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"railverse.dev/internal/command"
	"railverse.dev/internal/protocol"
	"railverse.dev/internal/sim/world"
)

// Conn is one bidirectional message stream to the session server.
// transport/ws implements it over a websocket; tests implement it over
// channels.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(b []byte) error
	Close() error
}

// ClientOptions describe how to join a session.
type ClientOptions struct {
	Name      string
	Company   command.CompanyID
	Spectator bool
}

// Client is the non-authoritative end of a lockstep session. It keeps
// its own full simulation, fed exclusively by the server's ordered
// command stream: commands are buffered per tick and executed only
// once the tick's close marker arrived, in (origin, sequence) order.
// The client has no tick timer of its own; the marker stream paces it,
// so a stalled network stalls the simulation instead of forking it.
type Client struct {
	opts ClientOptions
	conn Conn
	log  *log.Logger

	world    *world.World
	disp     *command.Dispatcher
	frontend *command.Frontend
	buf      *TickBuffer

	id      command.ParticipantID
	company command.CompanyID
	params  protocol.SessionParams

	// OnTick, when set, runs after every executed tick on the Run
	// goroutine. Bots and UIs issue their commands from here; the
	// simulation must never be touched from another goroutine while
	// Run is live.
	OnTick func(tick uint64)

	tick uint64
	// Digest history on both sides of the comparison: the client
	// usually executes a tick before the server's digest for it
	// arrives (closing runs ahead of the server's own execution), so
	// whichever side is first parks its value here.
	serverDigests map[uint64]uint64
	localDigests  map[uint64]uint64
}

func NewClient(conn Conn, opts ClientOptions, logger *log.Logger) *Client {
	return &Client{
		opts:          opts,
		conn:          conn,
		log:           logger,
		buf:           NewTickBuffer(),
		serverDigests: map[uint64]uint64{},
		localDigests:  map[uint64]uint64{},
	}
}

// Handshake performs HELLO/WELCOME and builds the local simulation
// from the session parameters. Must complete before Run.
func (c *Client) Handshake() error {
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            c.opts.Name,
		Company:         uint8(c.opts.Company),
		Spectator:       c.opts.Spectator,
	}
	if err := c.writeJSON(hello); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	msg, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("welcome: %w", err)
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil {
		return fmt.Errorf("welcome: %w", err)
	}
	if w.Type != protocol.TypeWelcome {
		return fmt.Errorf("expected WELCOME, got %s", w.Type)
	}
	if w.Error != "" {
		return fmt.Errorf("join refused: %s", w.Error)
	}
	if w.ProtocolVersion != protocol.Version {
		return fmt.Errorf("%s: server speaks %q, this build speaks %q",
			protocol.ErrProtoVersion, w.ProtocolVersion, protocol.Version)
	}

	c.id = command.ParticipantID(w.Participant)
	c.company = command.CompanyID(w.Company)
	c.params = w.Params
	c.tick = w.Params.CurrentTick

	c.world = world.New(world.Config{
		Width:         w.Params.MapWidth,
		Height:        w.Params.MapHeight,
		StartingFunds: command.Money(w.Params.StartingFunds),
		MaxLoan:       command.Money(w.Params.MaxLoan),
		Seed:          w.Params.Seed,
	})
	logMain := command.NewLogRing(128)
	logAux := command.NewLogRing(256)
	c.disp = command.NewDispatcher(c.world.BuildRegistry(), logMain, logAux)
	c.frontend = command.NewFrontend(c.disp, clientSender{c}, command.NewCallbackTable())

	c.log.Printf("joined as participant=%d company=%d tick=%d", c.id, c.company, c.tick)
	return nil
}

// Frontend returns the command entry point bound to this session.
func (c *Client) Frontend() *command.Frontend { return c.frontend }

// World returns the local simulation (read-only use outside Run).
func (c *Client) World() *world.World { return c.world }

func (c *Client) Tick() uint64 { return c.tick }

// Ctx builds a dispatch context for locally issued commands.
func (c *Client) Ctx() *command.Context {
	return &command.Context{
		Role:       roleFor(c.company),
		Mode:       command.ModeClient,
		Company:    c.company,
		PauseLevel: c.world.PauseLevel(),
		Tick:       c.tick,
		State:      c.world,
	}
}

// Run consumes the server stream until ctx is cancelled, the
// connection drops, or the session desynchronizes.
func (c *Client) Run(ctx context.Context) error {
	msgs := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			b, err := c.conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			msgs <- b
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// Best effort: tell the server this is a shutdown, not a
			// stall, so the slot frees immediately.
			_ = c.writeJSON(protocol.QuitMsg{Type: protocol.TypeQuit, ProtocolVersion: protocol.Version})
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("connection lost: %w", err)
		case b := <-msgs:
			if err := c.handleMessage(b); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handleMessage(b []byte) error {
	base, err := protocol.DecodeBase(b)
	if err != nil {
		return nil
	}
	switch base.Type {
	case protocol.TypeCmd:
		var m protocol.CmdMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return nil
		}
		raw, err := base64.StdEncoding.DecodeString(m.Envelope)
		if err != nil {
			return nil
		}
		var env command.Envelope
		if err := env.UnmarshalBinary(raw); err != nil {
			c.log.Printf("bad envelope from server: %v", err)
			return nil
		}
		c.buf.Put(&env)
		return c.advance()

	case protocol.TypeTickDone:
		var m protocol.TickDoneMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return nil
		}
		c.buf.Close(m.Tick, m.Count)
		if m.DigestTick != 0 {
			c.serverDigests[m.DigestTick] = m.Digest
			if err := c.checkDigest(m.DigestTick); err != nil {
				return err
			}
		}
		return c.advance()

	case protocol.TypeResult:
		var m protocol.ResultMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return nil
		}
		c.log.Printf("command rejected: %s %s", m.Code, m.Summary)
		return nil

	case protocol.TypeDesync:
		var m protocol.DesyncMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return nil
		}
		return fmt.Errorf("tick %d participant %d: %s: %w", m.Tick, m.Participant, m.Reason, ErrDesynced)
	}
	return nil
}

// advance executes every tick that is complete. Incomplete ticks stall
// the simulation; that is the only backpressure in the protocol.
func (c *Client) advance() error {
	for c.buf.Complete(c.tick + 1) {
		c.tick++
		for _, env := range c.buf.Drain(c.tick) {
			if err := c.execute(env); err != nil {
				return err
			}
		}
		c.localDigests[c.tick] = c.world.Digest()
		if err := c.checkDigest(c.tick); err != nil {
			return err
		}
		if c.OnTick != nil {
			c.OnTick(c.tick)
		}
	}
	return nil
}

// execute runs one replicated envelope. It passed the authoritative
// test pass, so any failure now means our state diverged from the
// state it was accepted against.
func (c *Client) execute(env *command.Envelope) error {
	env.Cmd |= command.CmdNetworkRouted
	ctx := &command.Context{
		Role:       roleFor(env.Company),
		Mode:       command.ModeClient,
		Company:    env.Company,
		PauseLevel: c.world.PauseLevel(),
		Tick:       c.tick,
		State:      c.world,
	}
	res := c.disp.Dispatch(ctx, env, command.DoExec)
	if env.Origin == c.id {
		c.frontend.Callbacks().Invoke(env.Callback, res, env)
	}
	if res.Failed() {
		reason := fmt.Sprintf("%s passed the authoritative test pass but failed here: %s",
			c.disp.Registry().Name(env.Cmd), res.Summary())
		c.log.Printf("DESYNC tick=%d %s", c.tick, reason)
		c.reportDesync(reason)
		return fmt.Errorf("tick %d: %s: %w", c.tick, reason, ErrDesynced)
	}
	return nil
}

// checkDigest compares local and server digests for a tick once both
// are known.
func (c *Client) checkDigest(tick uint64) error {
	want, haveServer := c.serverDigests[tick]
	got, haveLocal := c.localDigests[tick]
	if !haveServer || !haveLocal {
		return nil
	}
	delete(c.serverDigests, tick)
	delete(c.localDigests, tick)
	if got == want {
		return nil
	}
	reason := fmt.Sprintf("digest mismatch at tick %d: local %016x, server %016x", tick, got, want)
	c.log.Printf("DESYNC %s", reason)
	c.reportDesync(reason)
	return fmt.Errorf("%s: %w", reason, ErrDesynced)
}

func (c *Client) reportDesync(reason string) {
	_ = c.writeJSON(protocol.DesyncMsg{
		Type:            protocol.TypeDesync,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrSessionDesynced,
		Tick:            c.tick,
		Participant:     uint32(c.id),
		Reason:          reason,
	})
}

func (c *Client) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(b)
}

// clientSender routes frontend submissions to the server. The
// envelope's callback survives the round trip inside the envelope
// itself; the confirmed result arrives with the rebroadcast.
type clientSender struct {
	c *Client
}

func (s clientSender) SendCommand(env *command.Envelope) error {
	b, err := env.MarshalBinary()
	if err != nil {
		return err
	}
	return s.c.writeJSON(protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Envelope:        base64.StdEncoding.EncodeToString(b),
	})
}
