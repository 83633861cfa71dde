package world

import (
	"testing"

	"railverse.dev/internal/command"
)

func newTestWorld(t *testing.T, funds command.Money) (*World, *command.Dispatcher) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StartingFunds = funds
	w := New(cfg)
	if err := w.ActivateCompany(0); err != nil {
		t.Fatalf("activate company: %v", err)
	}
	d := command.NewDispatcher(w.BuildRegistry(), command.NewLogRing(32), command.NewLogRing(32))
	return w, d
}

func ctxFor(w *World, c command.CompanyID) *command.Context {
	return &command.Context{
		Role:       command.RoleCompany,
		Mode:       command.ModeOffline,
		Company:    c,
		PauseLevel: w.PauseLevel(),
		State:      w,
	}
}

// clearTile finds a clear inland tile away from water so scenarios are
// not at the mercy of the terrain generator.
func clearTile(t *testing.T, w *World) command.Tile {
	t.Helper()
	cfg := w.Config()
	for y := 2; y < cfg.Height-2; y++ {
		for x := 2; x < cfg.Width-2; x++ {
			tile := w.TileXY(x, y)
			if w.Tile(tile).Kind == TileClear && !w.adjacentWater(tile) {
				return tile
			}
		}
	}
	t.Fatal("no clear tile found")
	return 0
}

func TestBuildObjectScenario(t *testing.T) {
	w, d := newTestWorld(t, 1000)
	tile := clearTile(t, w)
	env := &command.Envelope{Cmd: uint32(command.CmdBuildObject), Tile: tile, P1: 2}

	est := d.Estimate(ctxFor(w, 0), env, command.DoNone)
	if est.Failed() {
		t.Fatalf("estimate failed: %s", est.Summary())
	}
	if w.Tile(tile).Kind != TileClear {
		t.Fatalf("estimate mutated the map")
	}

	res := d.Dispatch(ctxFor(w, 0), env, command.DoExec)
	if res.Failed() {
		t.Fatalf("execute failed: %s", res.Summary())
	}
	ti := w.Tile(tile)
	if ti.Kind != TileObject || ti.Owner != 0 || ti.Param != 2 {
		t.Fatalf("object not placed: %+v", ti)
	}
	if got := w.Company(0).Funds; got != 1000-res.Money() {
		t.Fatalf("funds = %d, want %d", got, 1000-res.Money())
	}

	// Second build on the same tile must fail in the test pass.
	res = d.Dispatch(ctxFor(w, 0), env, command.DoExec)
	if !res.Failed() || res.ErrorMessage() != command.MsgAreaNotClear {
		t.Fatalf("want MsgAreaNotClear, got %s", res.Summary())
	}
}

func TestBuildObjectInsufficientFunds(t *testing.T) {
	w, d := newTestWorld(t, 10)
	tile := clearTile(t, w)
	env := &command.Envelope{Cmd: uint32(command.CmdBuildObject), Tile: tile}

	res := d.Dispatch(ctxFor(w, 0), env, command.DoExec)
	if !res.Failed() || res.ErrorMessage() != command.MsgNotEnoughCash {
		t.Fatalf("want MsgNotEnoughCash, got %s", res.Summary())
	}
	if w.Tile(tile).Kind != TileClear || w.Company(0).Funds != 10 {
		t.Fatalf("failed command mutated state")
	}
}

func TestBuildObjectFoundationMessage(t *testing.T) {
	w, d := newTestWorld(t, 100000)

	// Manufacture a shoreline: water next to a clear tile.
	tile := clearTile(t, w)
	neighbor := tile + 1
	w.Tile(neighbor).Kind = TileWater

	env := &command.Envelope{Cmd: uint32(command.CmdBuildObject), Tile: tile}
	res := d.Dispatch(ctxFor(w, 0), env, command.DoExec)
	if res.Failed() {
		t.Fatalf("foundation build must succeed: %s", res.Summary())
	}
	if !res.IsSuccessWithMessage() {
		t.Fatalf("expected success-with-message for foundation surcharge")
	}
	if res.Money() != costObjectBase+costObjectBase/2 {
		t.Fatalf("surcharge missing: %d", res.Money())
	}
	failedView := res.UnwrapSuccessWithMessage()
	if failedView.ErrorMessage() != command.MsgFoundationRequired {
		t.Fatalf("unwrapped message = %v", failedView.ErrorMessage())
	}
}

func TestTrackBuildRemoveRoundTrip(t *testing.T) {
	w, d := newTestWorld(t, 10000)
	tile := clearTile(t, w)

	res := d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdBuildTrack), Tile: tile, P1: 0b101}, command.DoExec)
	if res.Failed() {
		t.Fatalf("build track: %s", res.Summary())
	}
	if res.Money() != 2*costTrackPiece {
		t.Fatalf("track cost = %d, want %d", res.Money(), 2*costTrackPiece)
	}

	// Overlapping build only pays for the new piece.
	res = d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdBuildTrack), Tile: tile, P1: 0b111}, command.DoExec)
	if res.Failed() || res.Money() != costTrackPiece {
		t.Fatalf("incremental build: %s", res.Summary())
	}

	// Identical rebuild is refused.
	res = d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdBuildTrack), Tile: tile, P1: 0b111}, command.DoExec)
	if !res.Failed() || res.ErrorMessage() != command.MsgAlreadyBuilt {
		t.Fatalf("want MsgAlreadyBuilt, got %s", res.Summary())
	}

	res = d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdRemoveTrack), Tile: tile, P1: 0b111}, command.DoExec)
	if res.Failed() {
		t.Fatalf("remove track: %s", res.Summary())
	}
	if w.Tile(tile).Kind != TileClear {
		t.Fatalf("tile not cleared after full removal")
	}
}

func TestVehicleLifecycle(t *testing.T) {
	w, d := newTestWorld(t, 10000)

	res := d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdBuildVehicle), P1: 1}, command.DoExec)
	if res.Failed() {
		t.Fatalf("build vehicle: %s", res.Summary())
	}
	id := res.ResultData()
	if id == 0 || w.Vehicle(id) == nil {
		t.Fatalf("vehicle id not reported: %d", id)
	}

	if res := d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdStartStopVehicle), P1: id}, command.DoExec); res.Failed() {
		t.Fatalf("start: %s", res.Summary())
	}
	res = d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdSellVehicle), P1: id}, command.DoExec)
	if !res.Failed() || res.ErrorMessage() != command.MsgVehicleInUse {
		t.Fatalf("selling a running vehicle must fail, got %s", res.Summary())
	}
	if res := d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdStartStopVehicle), P1: id}, command.DoExec); res.Failed() {
		t.Fatalf("stop: %s", res.Summary())
	}

	funds := w.Company(0).Funds
	res = d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdSellVehicle), P1: id}, command.DoExec)
	if res.Failed() {
		t.Fatalf("sell: %s", res.Summary())
	}
	if w.Vehicle(id) != nil {
		t.Fatalf("vehicle still present after sale")
	}
	if w.Company(0).Funds <= funds {
		t.Fatalf("sale must credit the company")
	}
}

func TestLoanFlow(t *testing.T) {
	w, d := newTestWorld(t, 100)

	res := d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdIncreaseLoan), P3: 5000}, command.DoExec)
	if res.Failed() {
		t.Fatalf("increase loan: %s", res.Summary())
	}
	if w.Company(0).Funds != 5100 || w.Company(0).Loan != 5000 {
		t.Fatalf("loan not credited: funds=%d loan=%d", w.Company(0).Funds, w.Company(0).Loan)
	}

	// Repay more than outstanding: clamped to the loan.
	res = d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdDecreaseLoan), P3: 99999}, command.DoExec)
	if res.Failed() {
		t.Fatalf("decrease loan: %s", res.Summary())
	}
	if w.Company(0).Loan != 0 || w.Company(0).Funds != 100 {
		t.Fatalf("repay wrong: funds=%d loan=%d", w.Company(0).Funds, w.Company(0).Loan)
	}

	res = d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdDecreaseLoan), P3: 10}, command.DoExec)
	if !res.Failed() || res.ErrorMessage() != command.MsgNoLoanToRepay {
		t.Fatalf("want MsgNoLoanToRepay, got %s", res.Summary())
	}
}

func TestDigestConvergence(t *testing.T) {
	cfg := DefaultConfig()
	a, b := New(cfg), New(cfg)
	if a.Digest() != b.Digest() {
		t.Fatalf("fresh identically-seeded worlds must agree")
	}
	_ = a.ActivateCompany(0)
	_ = b.ActivateCompany(0)

	da := command.NewDispatcher(a.BuildRegistry(), command.NewLogRing(8), command.NewLogRing(8))
	db := command.NewDispatcher(b.BuildRegistry(), command.NewLogRing(8), command.NewLogRing(8))

	script := []command.Envelope{
		{Cmd: uint32(command.CmdBuildTrack), Tile: a.TileXY(10, 10), P1: 0b11},
		{Cmd: uint32(command.CmdBuildVehicle), P1: 3},
		{Cmd: uint32(command.CmdPlaceSign), Tile: a.TileXY(12, 12), Text: "junction"},
	}
	for i := range script {
		ra := da.Dispatch(ctxFor(a, 0), &script[i], command.DoExec)
		rb := db.Dispatch(ctxFor(b, 0), &script[i], command.DoExec)
		if ra.Succeeded() != rb.Succeeded() || ra.Money() != rb.Money() {
			t.Fatalf("cmd %d diverged: %s vs %s", i, ra.Summary(), rb.Summary())
		}
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digests diverged after identical command stream")
	}
}

func TestPauseCommand(t *testing.T) {
	w, d := newTestWorld(t, 1000)
	srv := &command.Context{Role: command.RoleServer, Mode: command.ModeServer, Company: command.CompanyServer, PauseLevel: w.PauseLevel(), State: w}

	if res := d.Dispatch(srv, &command.Envelope{Cmd: uint32(command.CmdPause), P1: 2}, command.DoExec); res.Failed() {
		t.Fatalf("pause: %s", res.Summary())
	}
	if w.PauseLevel() != command.PauseLevelNoConstruction {
		t.Fatalf("pause level = %v", w.PauseLevel())
	}

	// Construction is now frozen for companies.
	tile := clearTile(t, w)
	res := d.Dispatch(ctxFor(w, 0), &command.Envelope{Cmd: uint32(command.CmdBuildObject), Tile: tile}, command.DoExec)
	if !res.Failed() || res.ErrorMessage() != command.MsgPaused {
		t.Fatalf("want MsgPaused, got %s", res.Summary())
	}

	// Unpause is allowed even while fully frozen.
	srv.PauseLevel = w.PauseLevel()
	if res := d.Dispatch(srv, &command.Envelope{Cmd: uint32(command.CmdPause), P1: 0}, command.DoExec); res.Failed() {
		t.Fatalf("unpause: %s", res.Summary())
	}
	if w.Paused() {
		t.Fatalf("still paused")
	}
}
