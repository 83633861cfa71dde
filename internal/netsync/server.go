package netsync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"railverse.dev/internal/command"
	"railverse.dev/internal/protocol"
	"railverse.dev/internal/sim/world"
)

// ErrDesynced terminates a session that detected state divergence.
// There is no recovery path: a desynchronized peer would keep issuing
// commands against a world the others do not have.
var ErrDesynced = errors.New("session desynchronized")

// JoinRequest asks the session goroutine to admit a connection. Out is
// the connection's outbound frame queue; Resp receives exactly one
// response.
type JoinRequest struct {
	Name      string
	Company   command.CompanyID
	Spectator bool
	Out       chan []byte
	Resp      chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// Submission is one decoded envelope from a connected peer, before the
// session has ordered it.
type Submission struct {
	Origin command.ParticipantID
	Env    *command.Envelope
}

// DesyncNotice is a peer reporting that its state diverged.
type DesyncNotice struct {
	Origin command.ParticipantID
	Tick   uint64
	Reason string
}

type peer struct {
	id        command.ParticipantID
	name      string
	company   command.CompanyID
	spectator bool
	out       chan []byte
}

// Session is the authoritative end of a lockstep game. A single
// goroutine (Run) owns the world and all session state; transports
// talk to it exclusively through the Join/Leave/Inbox channels.
//
// Commands are scheduled ahead of time: an accepted envelope is
// stamped with tick = current + TickDelay and a per-tick sequence
// number, then rebroadcast to every peer including its origin. The
// hosting world executes it at that tick exactly like everyone else,
// so the host gains no timing advantage.
type Session struct {
	cfg Config
	log *log.Logger

	world     *world.World
	disp      *command.Dispatcher
	callbacks *command.CallbackTable
	buf       *TickBuffer

	join   chan JoinRequest
	leave  chan command.ParticipantID
	inbox  chan Submission
	desync chan DesyncNotice
	stop   chan struct{}

	peers     map[command.ParticipantID]*peer
	companies map[command.CompanyID]command.ParticipantID
	nextID    uint32

	started         bool
	pendingActivate []command.CompanyID
	tick            uint64
	schedTick       uint64
	schedCount      int
	lastDigest      uint64

	sink     CommandSink
	reporter DesyncReporter
}

func NewSession(cfg Config, w *world.World, disp *command.Dispatcher, logger *log.Logger) *Session {
	return &Session{
		cfg:       cfg,
		log:       logger,
		world:     w,
		disp:      disp,
		callbacks: command.NewCallbackTable(),
		buf:       NewTickBuffer(),
		join:      make(chan JoinRequest, 4),
		leave:     make(chan command.ParticipantID, 16),
		inbox:     make(chan Submission, 256),
		desync:    make(chan DesyncNotice, 4),
		stop:      make(chan struct{}),
		peers:     map[command.ParticipantID]*peer{},
		companies: map[command.CompanyID]command.ParticipantID{},
		nextID:    uint32(command.ParticipantServer),
	}
}

// Channel accessors for transports.
func (s *Session) Join() chan<- JoinRequest            { return s.join }
func (s *Session) Leave() chan<- command.ParticipantID { return s.leave }
func (s *Session) Inbox() chan<- Submission            { return s.inbox }
func (s *Session) DesyncInbox() chan<- DesyncNotice    { return s.desync }
func (s *Session) Callbacks() *command.CallbackTable   { return s.callbacks }

// SetCommandSink wires the persistent command log. Must be called
// before Run.
func (s *Session) SetCommandSink(sink CommandSink) { s.sink = sink }

// SetDesyncReporter wires the desync report store. Must be called
// before Run.
func (s *Session) SetDesyncReporter(r DesyncReporter) { s.reporter = r }

func (s *Session) Stop() { close(s.stop) }

// Run owns the session until ctx is cancelled, Stop is called, or a
// desync is reported. Ticking begins once MinClients peers have joined
// (there is no state transfer, so late joins are refused once the game
// started).
func (s *Session) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.join:
			s.handleJoin(req)
		case id := <-s.leave:
			s.handleLeave(id)
		case sub := <-s.inbox:
			s.handleSubmission(sub)
		case n := <-s.desync:
			return s.handleDesync(ctx, n)
		case <-ticker.C:
			if !s.started {
				continue
			}
			if err := s.stepTick(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handleJoin(req JoinRequest) {
	wc := s.world.Config()
	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Params: protocol.SessionParams{
			TickRateHz:    s.cfg.TickRateHz,
			TickDelay:     s.cfg.TickDelay,
			MapWidth:      wc.Width,
			MapHeight:     wc.Height,
			Seed:          wc.Seed,
			StartingFunds: int64(wc.StartingFunds),
			MaxLoan:       int64(wc.MaxLoan),
			CurrentTick:   s.tick,
		},
	}
	refuse := func(code string) {
		w.Error = code
		req.Resp <- JoinResponse{Welcome: w}
	}

	if s.started {
		refuse(protocol.ErrSessionStarted)
		return
	}
	if len(s.peers) >= s.cfg.MaxClients {
		refuse(protocol.ErrSessionFull)
		return
	}

	company := command.CompanySpectator
	if !req.Spectator {
		company = req.Company
		if company >= command.CompanyMax {
			refuse(protocol.ErrProtoBadRequest)
			return
		}
		if _, taken := s.companies[company]; taken {
			refuse(protocol.ErrCompanyTaken)
			return
		}
		// Activation itself goes through the command pipeline once
		// the session starts, so every peer performs it at the same
		// tick.
		s.pendingActivate = append(s.pendingActivate, company)
	}

	s.nextID++
	p := &peer{
		id:        command.ParticipantID(s.nextID),
		name:      req.Name,
		company:   company,
		spectator: req.Spectator,
		out:       req.Out,
	}
	s.peers[p.id] = p
	if !p.spectator {
		s.companies[company] = p.id
	}

	w.Participant = uint32(p.id)
	w.Company = uint8(company)
	req.Resp <- JoinResponse{Welcome: w}

	s.log.Printf("join participant=%d name=%q company=%d spectator=%v", p.id, p.name, company, p.spectator)

	if len(s.peers) >= s.cfg.MinClients {
		s.begin()
	}
}

// begin opens the scheduling pipeline: the first TickDelay ticks are
// closed empty so the simulation has something to execute while the
// first scheduled commands are still in flight.
func (s *Session) begin() {
	if s.started {
		return
	}
	s.started = true
	for t := uint64(1); t < s.cfg.TickDelay; t++ {
		s.buf.Close(t, 0)
		s.broadcast(protocol.TickDoneMsg{
			Type:            protocol.TypeTickDone,
			ProtocolVersion: protocol.Version,
			Tick:            t,
			Count:           0,
		})
	}
	s.schedTick = s.cfg.TickDelay
	s.schedCount = 0
	s.log.Printf("session started tick_rate=%dhz delay=%d", s.cfg.TickRateHz, s.cfg.TickDelay)

	for _, c := range s.pendingActivate {
		s.handleSubmission(Submission{
			Origin: command.ParticipantServer,
			Env: &command.Envelope{
				Cmd:     uint32(command.CmdActivateCompany),
				P1:      uint32(c),
				Company: command.CompanyServer,
			},
		})
	}
	s.pendingActivate = nil
}

func (s *Session) handleLeave(id command.ParticipantID) {
	p, ok := s.peers[id]
	if !ok {
		return
	}
	delete(s.peers, id)
	if !p.spectator {
		delete(s.companies, p.company)
		if !s.started {
			// The lobby has not activated anything yet; retract the
			// pending activation so the company does not come alive
			// unowned.
			for i, c := range s.pendingActivate {
				if c == p.company {
					s.pendingActivate = append(s.pendingActivate[:i], s.pendingActivate[i+1:]...)
					break
				}
			}
		}
	}
	s.log.Printf("leave participant=%d name=%q", id, p.name)
}

// handleSubmission runs the authoritative test pass on a submitted
// envelope. Failures go back to the origin only; accepted envelopes
// are stamped and rebroadcast to everyone.
func (s *Session) handleSubmission(sub Submission) {
	env := sub.Env

	reject := func(code, summary string) {
		s.sendTo(sub.Origin, protocol.ResultMsg{
			Type:            protocol.TypeResult,
			ProtocolVersion: protocol.Version,
			Code:            code,
			Summary:         summary,
		})
	}

	reg := s.disp.Registry()
	if !reg.IsValid(env.Cmd) {
		reject(protocol.ErrCmdMalformed, "unknown command")
		return
	}

	// The origin does not get to pick its company; the session knows
	// who is talking. Internal submissions (origin = server) keep the
	// company they were built with.
	if sub.Origin != command.ParticipantServer {
		p, ok := s.peers[sub.Origin]
		if !ok {
			return
		}
		env.Company = p.company
	}

	flags := reg.Flags(env.Cmd)
	if flags&command.CmdClientID != 0 {
		env.P2 = uint32(sub.Origin)
	}

	ctx := s.cmdContext(env.Company)
	ctx.Tick = s.schedTick
	if res := s.disp.Estimate(ctx, env, command.DoNone); res.Failed() {
		reject(protocol.ErrCmdRejected, res.Summary())
		return
	}

	env.Origin = sub.Origin
	env.Tick = s.schedTick
	env.Seq = uint32(s.schedCount)
	s.schedCount++

	s.buf.Put(env.Clone())
	if s.sink != nil {
		if err := s.sink.Record(env); err != nil {
			s.log.Printf("command sink: %v", err)
		}
	}

	b, err := env.MarshalBinary()
	if err != nil {
		s.log.Printf("marshal scheduled envelope: %v", err)
		return
	}
	s.broadcast(protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Envelope:        base64.StdEncoding.EncodeToString(b),
	})
}

// stepTick closes the scheduling window TickDelay ticks ahead, then
// advances the simulation by one tick. The close marker piggybacks
// the state digest of the last executed tick so peers can verify
// convergence continuously.
func (s *Session) stepTick(ctx context.Context) error {
	s.buf.Close(s.schedTick, s.schedCount)
	s.broadcast(protocol.TickDoneMsg{
		Type:            protocol.TypeTickDone,
		ProtocolVersion: protocol.Version,
		Tick:            s.schedTick,
		Count:           s.schedCount,
		DigestTick:      s.tick,
		Digest:          s.lastDigest,
	})
	s.schedTick++
	s.schedCount = 0

	if !s.buf.Complete(s.tick + 1) {
		// Cannot happen on the authoritative side: we close every
		// tick ourselves. Stall rather than diverge.
		s.log.Printf("tick %d incomplete, stalling", s.tick+1)
		return nil
	}
	s.tick++
	for _, env := range s.buf.Drain(s.tick) {
		if err := s.execute(ctx, env); err != nil {
			return err
		}
	}
	s.lastDigest = s.world.Digest()
	return nil
}

// execute runs one scheduled envelope at its tick. It passed the
// test pass when it was accepted; a failure now means the execute
// pass disagrees with that outcome, which is a fatal consistency
// error, never something to swallow.
func (s *Session) execute(ctx context.Context, env *command.Envelope) error {
	env.Cmd |= command.CmdNetworkRouted
	cctx := s.cmdContext(env.Company)
	res := s.disp.Dispatch(cctx, env, command.DoExec)
	if env.Origin == command.ParticipantServer {
		s.callbacks.Invoke(env.Callback, res, env)
	}
	if res.Failed() {
		reason := fmt.Sprintf("%s accepted at submission but failed at execution: %s",
			s.disp.Registry().Name(env.Cmd), res.Summary())
		return s.handleDesync(ctx, DesyncNotice{
			Origin: command.ParticipantServer,
			Tick:   s.tick,
			Reason: reason,
		})
	}
	return nil
}

func (s *Session) cmdContext(c command.CompanyID) *command.Context {
	return &command.Context{
		Role:       roleFor(c),
		Mode:       command.ModeServer,
		Company:    c,
		PauseLevel: s.world.PauseLevel(),
		Tick:       s.tick,
		State:      s.world,
	}
}

func (s *Session) handleDesync(ctx context.Context, n DesyncNotice) error {
	s.log.Printf("DESYNC tick=%d participant=%d reason=%q", n.Tick, n.Origin, n.Reason)
	if s.reporter != nil {
		rep := DesyncReport{
			At:          time.Now().UTC(),
			Tick:        n.Tick,
			Participant: uint32(n.Origin),
			Reason:      n.Reason,
			Digest:      s.lastDigest,
		}
		if err := s.reporter.Report(ctx, rep); err != nil {
			s.log.Printf("desync report: %v", err)
		}
	}
	s.broadcast(protocol.DesyncMsg{
		Type:            protocol.TypeDesync,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrSessionDesynced,
		Tick:            n.Tick,
		Participant:     uint32(n.Origin),
		Reason:          n.Reason,
	})
	return fmt.Errorf("participant %d at tick %d: %w", n.Origin, n.Tick, ErrDesynced)
}

func (s *Session) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("broadcast marshal: %v", err)
		return
	}
	var dead []command.ParticipantID
	for id, p := range s.peers {
		select {
		case p.out <- b:
		default:
			// A peer that cannot keep up with the command stream can
			// never catch up; cutting it is the only safe option.
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		s.log.Printf("participant %d outbound queue full, dropping", id)
		s.handleLeave(id)
	}
}

func (s *Session) sendTo(id command.ParticipantID, v any) {
	p, ok := s.peers[id]
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case p.out <- b:
	default:
	}
}

func roleFor(c command.CompanyID) command.Role {
	switch {
	case c == command.CompanyServer:
		return command.RoleServer
	case c == command.CompanySpectator:
		return command.RoleSpectator
	default:
		return command.RoleCompany
	}
}

// Submitter adapts the session for the local frontend: commands issued
// by the hosting process go through the same authoritative pipeline as
// remote ones.
type Submitter struct {
	s *Session
}

func (s *Session) LocalSender() *Submitter { return &Submitter{s: s} }

func (sub *Submitter) SendCommand(env *command.Envelope) error {
	select {
	case sub.s.inbox <- Submission{Origin: command.ParticipantServer, Env: env}:
		return nil
	case <-sub.s.stop:
		return errors.New("session stopped")
	}
}
