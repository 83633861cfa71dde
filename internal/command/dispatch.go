package command

import "strings"

// State is what the dispatcher itself needs from the simulation: the
// affordability check before the execute pass and the booking of the
// resulting expense after it. Handlers reach the rest of the world
// through the closures they were registered with.
type State interface {
	AvailableMoney(c CompanyID) Money
	ApplyExpense(c CompanyID, cost Cost)
}

// Context carries the session facts that gate a dispatch: who is
// acting, under which session mode, at which pause level and tick.
// It replaces ambient globals so the same dispatcher can serve local
// previews and replicated execution.
type Context struct {
	Role       Role
	Mode       Mode
	Company    CompanyID
	PauseLevel PauseLevel
	Tick       uint64
	State      State
}

// Dispatcher validates, prices and (when requested) executes commands
// against a fixed registry. All failure categories come back as Cost
// values, never as Go errors.
type Dispatcher struct {
	reg     *Registry
	logMain *LogRing
	logAux  *LogRing
}

func NewDispatcher(reg *Registry, logMain, logAux *LogRing) *Dispatcher {
	return &Dispatcher{reg: reg, logMain: logMain, logAux: logAux}
}

func (d *Dispatcher) Registry() *Registry { return d.reg }

// MainLog and AuxLog expose the rolling execution logs for desync
// forensics and the diagnostic dump.
func (d *Dispatcher) MainLog() *LogRing { return d.logMain }
func (d *Dispatcher) AuxLog() *LogRing  { return d.logAux }

// Dispatch runs the command in env. The handler is always invoked once
// with DoExec cleared (the test pass); only if doFlags requests
// execution and the test pass succeeded is it invoked again with
// DoExec set. Steps 1-7 and the test pass are free of observable side
// effects and safe to repeat for live cost previews.
//
// Descriptors flagged CmdNoTest skip the test pass when execution is
// requested: their dry-run outcome is allowed to differ from the real
// one, so a rehearsal proves nothing. Estimates still run the test
// pass, and affordability is checked against the executed result.
func (d *Dispatcher) Dispatch(ctx *Context, env *Envelope, doFlags DoFlag) Cost {
	if !d.reg.IsValid(env.Cmd) {
		return ErrorCost(MsgInvalidCommand)
	}
	cmdFlags := d.reg.Flags(env.Cmd)

	if res := checkPermission(ctx, cmdFlags); res.Failed() {
		return res
	}
	if !d.reg.AllowedWhilePaused(env.Cmd, ctx.PauseLevel) {
		return ErrorCost(MsgPaused)
	}

	text := env.Text
	if cmdFlags&CmdStrCtrl == 0 {
		text = stripControl(text)
	}

	args := Args{
		Tile:    env.Tile,
		Flags:   (doFlags &^ DoExec) | cmdFlags.DoFlags(),
		P1:      env.P1,
		P2:      env.P2,
		P3:      env.P3,
		Text:    text,
		Aux:     env.Aux,
		Company: ctx.Company,
	}
	handler := d.reg.desc(env.Cmd).Handler

	skipTest := cmdFlags&CmdNoTest != 0 && doFlags&DoExec != 0 && doFlags&DoQueryCost == 0

	if !skipTest {
		res := handler(args)
		if res.Failed() {
			if res.Tile() == InvalidTile {
				res.SetTile(env.Tile)
			}
			return res
		}

		if doFlags&DoExec == 0 || doFlags&DoQueryCost != 0 {
			return res
		}

		if doFlags&DoBankrupt == 0 && res.Money() > 0 {
			avail := ctx.State.AvailableMoney(ctx.Company)
			if res.Money() > avail {
				short := notEnoughCash(res.Money() - avail)
				short.SetTile(env.Tile)
				return short
			}
		}
	}

	args.Flags |= DoExec
	res := handler(args)
	if res.Failed() && res.Tile() == InvalidTile {
		res.SetTile(env.Tile)
	}
	if skipTest && res.Succeeded() && doFlags&DoBankrupt == 0 && res.Money() > 0 {
		// Without a dry run the price is only known now. The command
		// already ran; an unaffordable result is reported but cannot be
		// rolled back.
		avail := ctx.State.AvailableMoney(ctx.Company)
		if res.Money() > avail {
			res = notEnoughCash(res.Money() - avail)
			res.SetTile(env.Tile)
		}
	}
	if res.Succeeded() {
		ctx.State.ApplyExpense(ctx.Company, res)
	}

	ring := d.logMain
	if cmdFlags&CmdLogAux != 0 {
		ring = d.logAux
	}
	ring.Append(ctx.Tick, env, res)
	return res
}

// Estimate runs the test pass only, for cost previews. It never
// touches persistent state or the logs.
func (d *Dispatcher) Estimate(ctx *Context, env *Envelope, doFlags DoFlag) Cost {
	return d.Dispatch(ctx, env, (doFlags&^DoExec)|DoQueryCost)
}

func checkPermission(ctx *Context, flags CmdFlag) Cost {
	if flags&CmdOffline != 0 && ctx.Mode != ModeOffline {
		return ErrorCost(MsgNoPermission)
	}
	if flags&CmdServer != 0 && ctx.Role != RoleServer {
		return ErrorCost(MsgNoPermission)
	}
	if ctx.Role == RoleSpectator && flags&CmdSpectator == 0 {
		return ErrorCost(MsgNoPermission)
	}
	return NewCost()
}

// stripControl drops control characters from command text. Only
// descriptors carrying CmdStrCtrl receive the bytes verbatim.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, s)
}

// notEnoughCash builds the dedicated economic failure, carrying the
// shortfall as a message parameter for UI display.
func notEnoughCash(shortfall Money) Cost {
	c := ErrorCost(MsgNotEnoughCash)
	if shortfall < 0 {
		shortfall = 0
	}
	v := uint32(0xFFFFFFFF)
	if shortfall < Money(v) {
		v = uint32(shortfall)
	}
	c.UseParams(0, []uint32{v})
	return c
}
