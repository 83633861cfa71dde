package command

// DoFlag is the flag vocabulary passed to a handler invocation.
type DoFlag uint16

const (
	DoNone       DoFlag = 0
	DoExec       DoFlag = 1 << 0 // execute pass; without it the call is a test
	DoAuto       DoFlag = 1 << 1 // refuse to build on top of structures
	DoQueryCost  DoFlag = 1 << 2 // query cost only, never build
	DoNoWater    DoFlag = 1 << 3 // refuse to build on water
	DoBankrupt   DoFlag = 1 << 4 // administrative override, skip money check
	DoAllTiles   DoFlag = 1 << 5 // allow the command on void tiles
	DoForceClear DoFlag = 1 << 6 // clear whatever occupies the tile
)

// CmdFlag is the capability bitset recorded per registry entry.
type CmdFlag uint16

const (
	CmdServer    CmdFlag = 1 << 0 // only the server may initiate
	CmdSpectator CmdFlag = 1 << 1 // spectators may initiate
	CmdOffline   CmdFlag = 1 << 2 // single-player only
	CmdAuto      CmdFlag = 1 << 3 // sets DoAuto on dispatch
	CmdAllTiles  CmdFlag = 1 << 4 // sets DoAllTiles on dispatch
	CmdNoTest    CmdFlag = 1 << 5 // test and execute output may differ
	CmdNoWater   CmdFlag = 1 << 6 // sets DoNoWater on dispatch
	CmdClientID  CmdFlag = 1 << 7 // p2 is replaced with the origin participant id
	CmdStrCtrl   CmdFlag = 1 << 8 // text may contain control sequences
	CmdNoEst     CmdFlag = 1 << 9 // never run as an estimate
	CmdLogAux    CmdFlag = 1 << 10 // record in the auxiliary command log
)

// DoFlags derives the dispatch flags a descriptor's capability bits
// imply.
func (f CmdFlag) DoFlags() DoFlag {
	var d DoFlag
	if f&CmdAuto != 0 {
		d |= DoAuto
	}
	if f&CmdNoWater != 0 {
		d |= DoNoWater
	}
	if f&CmdAllTiles != 0 {
		d |= DoAllTiles
	}
	return d
}

// Packed command field layout: the wire shares one 32-bit field between
// the command id and per-envelope flag bits.
const (
	CmdIDMask    uint32 = 0x00FF
	CmdFlagsMask uint32 = 0xFF00

	// CmdNetworkRouted marks an envelope that already went through the
	// network layer and must not be enqueued again on execution.
	CmdNetworkRouted uint32 = 0x0100
)
