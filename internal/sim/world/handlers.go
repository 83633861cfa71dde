package world

import (
	"math/bits"

	"railverse.dev/internal/command"
)

// Base prices. Deliberately flat; price curves are not what the
// command envelope is exercised for.
const (
	costTrackPiece   = command.Money(60)
	costClearTrack   = command.Money(20)
	costClearObject  = command.Money(200)
	costClearWater   = command.Money(400)
	costTerraform    = command.Money(75)
	costObjectBase   = command.Money(300)
	costVehicleBase  = command.Money(2000)
	costVehicleStep  = command.Money(500)
	costPlaceSign    = command.Money(10)
	maxSignTextLen   = 32
	maxEngineType    = 8
	maxTerraformStep = 3
)

// checkTile runs the shared tile gate: bounds, void and water rules.
func (w *World) checkTile(a command.Args) command.Cost {
	t := w.Tile(a.Tile)
	if t == nil {
		return command.ErrorCost(command.MsgBuildOnVoid)
	}
	if t.Kind == TileVoid && a.Flags&command.DoAllTiles == 0 {
		return command.ErrorCost(command.MsgBuildOnVoid)
	}
	if t.Kind == TileWater && a.Flags&command.DoNoWater != 0 {
		return command.ErrorCost(command.MsgBuildOnWater)
	}
	return command.NewCost()
}

// cmdBuildTrack builds track pieces on a tile.
// p1 bits 0..5: the track pieces to add.
func (w *World) cmdBuildTrack(a command.Args) command.Cost {
	if res := w.checkTile(a); res.Failed() {
		return res
	}
	pieces := uint8(a.P1 & 0x3F)
	if pieces == 0 {
		return command.ErrorCost(command.MsgInvalidCommand)
	}

	t := w.Tile(a.Tile)
	switch t.Kind {
	case TileClear:
	case TileTrack:
		if t.Owner != a.Company {
			return command.ErrorCost(command.MsgOwnedByAnotherCompany)
		}
		if t.Param&pieces == pieces {
			return command.ErrorCost(command.MsgAlreadyBuilt)
		}
	default:
		return command.ErrorCost(command.MsgAreaNotClear)
	}

	newPieces := pieces
	if t.Kind == TileTrack {
		newPieces = pieces &^ t.Param
	}
	res := command.CostOfAmount(command.ExpenseConstruction, costTrackPiece*command.Money(bits.OnesCount8(newPieces)))

	if a.Exec() {
		t.Kind = TileTrack
		t.Owner = a.Company
		t.Param |= pieces
	}
	return res
}

// cmdRemoveTrack removes track pieces. p1: pieces to remove.
func (w *World) cmdRemoveTrack(a command.Args) command.Cost {
	t := w.Tile(a.Tile)
	if t == nil || t.Kind != TileTrack {
		return command.ErrorCost(command.MsgNothingToRemove)
	}
	if t.Owner != a.Company && a.Company != command.CompanyServer {
		return command.ErrorCost(command.MsgOwnedByAnotherCompany)
	}
	pieces := uint8(a.P1&0x3F) & t.Param
	if pieces == 0 {
		return command.ErrorCost(command.MsgNothingToRemove)
	}
	res := command.CostOfAmount(command.ExpenseConstruction, costClearTrack*command.Money(bits.OnesCount8(pieces)))

	if a.Exec() {
		t.Param &^= pieces
		if t.Param == 0 {
			t.Kind = TileClear
			t.Owner = 0
		}
	}
	return res
}

// cmdClearLand demolishes whatever occupies a tile.
func (w *World) cmdClearLand(a command.Args) command.Cost {
	t := w.Tile(a.Tile)
	if t == nil || t.Kind == TileVoid {
		return command.ErrorCost(command.MsgBuildOnVoid)
	}

	res := command.CostOf(command.ExpenseConstruction)
	switch t.Kind {
	case TileClear:
		// Clearing bare land is free and succeeds; handy for drag
		// operations that sweep mixed areas.
	case TileWater:
		if a.Flags&command.DoForceClear == 0 {
			return command.ErrorCost(command.MsgBuildOnWater)
		}
		res.AddMoney(costClearWater)
	case TileTrack, TileObject:
		if t.Owner != a.Company && a.Company != command.CompanyServer {
			return command.ErrorCost(command.MsgOwnedByAnotherCompany)
		}
		if t.Kind == TileTrack {
			res.AddMoney(costClearTrack * command.Money(bits.OnesCount8(t.Param)))
		} else {
			res.AddMoney(costClearObject)
		}
	}

	if a.Exec() {
		*t = TileInfo{Kind: TileClear}
	}
	return res
}

// cmdTerraform raises (p1=1) or lowers (p1=0) a tile by one step.
func (w *World) cmdTerraform(a command.Args) command.Cost {
	if res := w.checkTile(a); res.Failed() {
		return res
	}
	t := w.Tile(a.Tile)
	if t.Kind != TileClear {
		return command.ErrorCost(command.MsgAreaNotClear)
	}
	h := w.heights[a.Tile]
	if a.P1 != 0 {
		if h >= maxTerraformStep {
			return command.ErrorCost(command.MsgLandSloped)
		}
	} else {
		if h <= -maxTerraformStep {
			return command.ErrorCost(command.MsgLandSloped)
		}
	}
	res := command.CostOfAmount(command.ExpenseConstruction, costTerraform)

	if a.Exec() {
		if a.P1 != 0 {
			w.heights[a.Tile]++
		} else {
			w.heights[a.Tile]--
		}
	}
	return res
}

// cmdBuildObject places an object. p1: object type. Building next to
// water needs a foundation: the command still succeeds but carries an
// informational message with the surcharge.
func (w *World) cmdBuildObject(a command.Args) command.Cost {
	if res := w.checkTile(a); res.Failed() {
		return res
	}
	t := w.Tile(a.Tile)
	if t.Kind != TileClear {
		return command.ErrorCost(command.MsgAreaNotClear)
	}
	if a.P1 > 0xFF {
		return command.ErrorCost(command.MsgInvalidCommand)
	}

	res := command.CostOfAmount(command.ExpenseConstruction, costObjectBase)
	if w.adjacentWater(a.Tile) {
		res.AddMoney(costObjectBase / 2)
		res.MakeError(command.MsgFoundationRequired)
		res.MakeSuccessWithMessage()
	}
	res.SetTile(a.Tile)

	if a.Exec() {
		t.Kind = TileObject
		t.Owner = a.Company
		t.Param = uint8(a.P1)
	}
	return res
}

// cmdBuildVehicle builds a vehicle. p1: engine type. The new vehicle
// id comes back as result data.
func (w *World) cmdBuildVehicle(a command.Args) command.Cost {
	if a.P1 >= maxEngineType {
		return command.ErrorCost(command.MsgVehicleNotAvailable)
	}
	limit, _ := w.Setting("vehicles.max_per_company")
	if uint32(w.vehicleCount(a.Company)) >= limit {
		return command.ErrorCost(command.MsgVehicleNotAvailable)
	}
	value := costVehicleBase + costVehicleStep*command.Money(a.P1)
	res := command.CostOfAmount(command.ExpenseNewVehicles, value)

	if a.Exec() {
		w.nextVehicleID++
		id := w.nextVehicleID
		w.vehicles[id] = &Vehicle{ID: id, Owner: a.Company, Engine: a.P1, Value: value}
		res.SetResultData(id)
	}
	return res
}

// cmdSellVehicle sells a vehicle back at half value. p1: vehicle id.
func (w *World) cmdSellVehicle(a command.Args) command.Cost {
	v := w.vehicles[a.P1]
	if v == nil {
		return command.ErrorCost(command.MsgVehicleNotAvailable)
	}
	if v.Owner != a.Company {
		return command.ErrorCost(command.MsgOwnedByAnotherCompany)
	}
	if v.Running {
		return command.ErrorCost(command.MsgVehicleInUse)
	}
	res := command.CostOfAmount(command.ExpenseNewVehicles, -v.Value/2)

	if a.Exec() {
		delete(w.vehicles, a.P1)
	}
	return res
}

// cmdStartStopVehicle toggles a vehicle. p1: vehicle id.
func (w *World) cmdStartStopVehicle(a command.Args) command.Cost {
	v := w.vehicles[a.P1]
	if v == nil {
		return command.ErrorCost(command.MsgVehicleNotAvailable)
	}
	if v.Owner != a.Company {
		return command.ErrorCost(command.MsgOwnedByAnotherCompany)
	}
	if a.Exec() {
		v.Running = !v.Running
	}
	return command.NewCost()
}

// cmdIncreaseLoan takes a loan. p3: amount (p1=1 borrows up to the
// limit). The negative cost credits the company account.
func (w *World) cmdIncreaseLoan(a command.Args) command.Cost {
	c := w.Company(a.Company)
	if c == nil || !c.Active {
		return command.ErrorCost(command.MsgNoPermission)
	}
	amount := command.Money(a.P3)
	if a.P1 == 1 {
		amount = w.cfg.MaxLoan - c.Loan
	}
	if amount <= 0 || c.Loan+amount > w.cfg.MaxLoan {
		return command.ErrorCost(command.MsgLoanLimitReached)
	}
	res := command.CostOfAmount(command.ExpenseLoanInterest, -amount)

	if a.Exec() {
		c.Loan += amount
	}
	return res
}

// cmdDecreaseLoan pays back loan. p3: amount, clamped to the
// outstanding loan. Affordability is the dispatcher's check.
func (w *World) cmdDecreaseLoan(a command.Args) command.Cost {
	c := w.Company(a.Company)
	if c == nil || !c.Active {
		return command.ErrorCost(command.MsgNoPermission)
	}
	if c.Loan == 0 {
		return command.ErrorCost(command.MsgNoLoanToRepay)
	}
	amount := command.Money(a.P3)
	if amount > c.Loan {
		amount = c.Loan
	}
	if amount <= 0 {
		return command.ErrorCost(command.MsgInvalidCommand)
	}
	res := command.CostOfAmount(command.ExpenseLoanInterest, amount)

	if a.Exec() {
		c.Loan -= amount
	}
	return res
}

// cmdGiveMoney transfers money to another company. p2: destination
// company, p3: amount.
func (w *World) cmdGiveMoney(a command.Args) command.Cost {
	dest := w.Company(command.CompanyID(a.P2))
	if dest == nil || !dest.Active || command.CompanyID(a.P2) == a.Company {
		return command.ErrorCost(command.MsgInvalidCommand)
	}
	amount := command.Money(a.P3)
	if amount <= 0 {
		return command.ErrorCost(command.MsgInvalidCommand)
	}
	res := command.CostOfAmount(command.ExpenseOther, amount)

	if a.Exec() {
		dest.Funds += amount
	}
	return res
}

// cmdPlaceSign places a sign with the envelope text.
func (w *World) cmdPlaceSign(a command.Args) command.Cost {
	t := w.Tile(a.Tile)
	if t == nil || t.Kind == TileVoid {
		return command.ErrorCost(command.MsgBuildOnVoid)
	}
	if a.Text == "" || len(a.Text) > maxSignTextLen {
		return command.ErrorCost(command.MsgNameTooLong)
	}
	res := command.CostOfAmount(command.ExpenseProperty, costPlaceSign)

	if a.Exec() {
		w.nextSignID++
		id := w.nextSignID
		w.signs[id] = &Sign{ID: id, Owner: a.Company, Tile: a.Tile, Text: a.Text}
		res.SetResultData(id)
	}
	return res
}

// cmdRenameSign renames (or, with empty text, removes) a sign.
// p1: sign id.
func (w *World) cmdRenameSign(a command.Args) command.Cost {
	s := w.signs[a.P1]
	if s == nil {
		return command.ErrorCost(command.MsgSignNotFound)
	}
	if s.Owner != a.Company && a.Company != command.CompanyServer {
		return command.ErrorCost(command.MsgOwnedByAnotherCompany)
	}
	if len(a.Text) > maxSignTextLen {
		return command.ErrorCost(command.MsgNameTooLong)
	}

	if a.Exec() {
		if a.Text == "" {
			delete(w.signs, a.P1)
		} else {
			s.Text = a.Text
		}
	}
	return command.NewCost()
}

// cmdActivateCompany brings company p1 into the game with starting
// funds. Issued by the session itself when a player claims a company;
// replicated so every peer activates it at the same tick.
func (w *World) cmdActivateCompany(a command.Args) command.Cost {
	c := command.CompanyID(a.P1)
	if c > command.CompanyMax {
		return command.ErrorCost(command.MsgInvalidCommand)
	}
	if w.companies[c].Active {
		return command.ErrorCost(command.MsgCompanyExists)
	}

	if a.Exec() {
		w.companies[c] = Company{Active: true, Funds: w.cfg.StartingFunds}
	}
	return command.NewCost()
}

// cmdPause changes the pause state. p1: 0 unpauses, 1..3 pause with
// decreasing strictness (1 freezes all actions).
func (w *World) cmdPause(a command.Args) command.Cost {
	if a.P1 > 3 {
		return command.ErrorCost(command.MsgCanNotPauseHere)
	}

	if a.Exec() {
		switch a.P1 {
		case 0:
			w.paused = false
		case 1:
			w.paused, w.pauseLevel = true, command.PauseLevelNoActions
		case 2:
			w.paused, w.pauseLevel = true, command.PauseLevelNoConstruction
		case 3:
			w.paused, w.pauseLevel = true, command.PauseLevelNoLandscaping
		}
	}
	return command.NewCost()
}

// cmdChangeSetting updates a named session setting. text: setting
// name, p1: new value.
func (w *World) cmdChangeSetting(a command.Args) command.Cost {
	if _, ok := w.settings[a.Text]; !ok {
		return command.ErrorCost(command.MsgUnknownSetting)
	}

	if a.Exec() {
		w.settings[a.Text] = a.P1
	}
	return command.NewCost()
}

// cmdDesyncCheck exposes the state digest as result data without
// mutating anything; peers compare the values out of band.
// p2 carries the requesting participant (CmdClientID).
func (w *World) cmdDesyncCheck(a command.Args) command.Cost {
	res := command.NewCost()
	res.SetResultData(uint32(w.Digest()))
	return res
}
