package command

import "fmt"

// Sender hands an envelope to the replication layer. The network
// command queue implements it; offline sessions have none.
type Sender interface {
	SendCommand(env *Envelope) error
}

// Frontend is the synchronous convenience API callers (UI, scripting)
// use: it wraps the local test pass, the affordability preview and the
// hand-off to the network queue. Estimate-only calls never reach the
// queue.
type Frontend struct {
	d         *Dispatcher
	sender    Sender
	callbacks *CallbackTable
}

func NewFrontend(d *Dispatcher, sender Sender, callbacks *CallbackTable) *Frontend {
	return &Frontend{d: d, sender: sender, callbacks: callbacks}
}

// Do validates and prices env locally, then submits it for replicated
// execution unless estimateOnly is set. The returned Cost is the local
// test-pass result; the confirmed result arrives through the
// envelope's callback once the peer's own simulation executed it.
//
// In offline mode there is no round trip: the command executes
// immediately and the callback fires before Do returns.
func (f *Frontend) Do(ctx *Context, env *Envelope, estimateOnly bool) Cost {
	flags := DoNone
	if f.d.reg.IsValid(env.Cmd) && f.d.reg.Flags(env.Cmd)&CmdNoEst != 0 {
		estimateOnly = false
	}

	if env.Cmd&CmdNetworkRouted != 0 || (ctx.Mode == ModeOffline && !estimateOnly) {
		res := f.d.Dispatch(ctx, env, flags|DoExec)
		f.callbacks.Invoke(env.Callback, res, env)
		return res
	}

	res := f.d.Estimate(ctx, env, flags)
	if res.Failed() || estimateOnly {
		return res
	}

	if f.sender == nil {
		res.MakeError(MsgInvalidCommand)
		return res
	}
	if err := f.sender.SendCommand(env.Clone()); err != nil {
		res.MakeError(MsgInvalidCommand)
		return res
	}
	return res
}

// DoAsync is the fire-and-forget submission path: no cost preview is
// returned, only submission errors. Completion is observed through the
// envelope's callback.
func (f *Frontend) DoAsync(ctx *Context, env *Envelope) error {
	res := f.Do(ctx, env, false)
	if res.Failed() {
		return fmt.Errorf("command %s rejected: %s", f.d.reg.Name(env.Cmd), res.Summary())
	}
	return nil
}

// Callbacks exposes the callback table for the replication layer,
// which invokes callbacks once origin envelopes complete.
func (f *Frontend) Callbacks() *CallbackTable { return f.callbacks }
