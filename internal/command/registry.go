package command

// CommandID indexes the dense command table. The id must fit the low
// byte of the packed wire field.
type CommandID uint8

const (
	CmdBuildTrack       CommandID = iota // build a piece of track
	CmdRemoveTrack                       // remove a piece of track
	CmdClearLand                         // demolish a tile
	CmdTerraform                         // raise or lower a tile
	CmdBuildObject                       // build an object (depot, station, ...)
	CmdBuildVehicle                      // build a vehicle
	CmdSellVehicle                       // sell a vehicle
	CmdStartStopVehicle                  // toggle a vehicle between running and stopped
	CmdIncreaseLoan                      // take money from the bank
	CmdDecreaseLoan                      // pay back loan
	CmdGiveMoney                         // transfer money to another company
	CmdPlaceSign                         // place a sign
	CmdRenameSign                        // rename or remove a sign
	CmdActivateCompany                   // bring a company into play
	CmdPause                             // change the pause state
	CmdChangeSetting                     // change a session setting
	CmdDesyncCheck                       // force a desync state probe

	CmdEnd // must be last
)

// Args is the structured parameter bundle handed to a handler. It
// covers both the basic four-parameter shape and the extended shape
// (P3 plus Aux); handlers just ignore what they do not use.
type Args struct {
	Tile    Tile
	Flags   DoFlag
	P1, P2  uint32
	P3      uint64
	Text    string
	Aux     *Aux
	Company CompanyID
}

// Exec reports whether this invocation is the mutating execute pass.
func (a Args) Exec() bool { return a.Flags&DoExec != 0 }

// Handler runs one command. Without DoExec it must validate and price
// the action with no observable side effects; with DoExec it performs
// the mutation.
type Handler func(a Args) Cost

// Desc is one command table entry.
type Desc struct {
	Handler Handler
	Name    string
	Flags   CmdFlag
	Type    CmdType
}

// Registry is the fixed command table: exactly one descriptor per
// CommandID, immutable after Build.
type Registry struct {
	table [CmdEnd]Desc
}

// NewRegistry builds a registry from a full table. It panics if an
// entry is missing, registered twice, or the id space does not fit the
// wire mask; the table is wired at process start so this is a
// programming error, not a runtime condition.
func NewRegistry(entries map[CommandID]Desc) *Registry {
	if uint32(CmdEnd) > CmdIDMask+1 {
		panic("command: id space exceeds wire mask")
	}
	r := &Registry{}
	seen := [CmdEnd]bool{}
	for id, d := range entries {
		if id >= CmdEnd {
			panic("command: descriptor for out-of-range id")
		}
		if seen[id] {
			panic("command: duplicate descriptor")
		}
		if d.Handler == nil || d.Name == "" {
			panic("command: incomplete descriptor for " + d.Name)
		}
		seen[id] = true
		r.table[id] = d
	}
	for id := CommandID(0); id < CmdEnd; id++ {
		if !seen[id] {
			panic("command: missing descriptor")
		}
	}
	return r
}

// IsValid reports whether cmd (with flag bits stripped) names a
// registered command.
func (r *Registry) IsValid(cmd uint32) bool {
	return cmd&CmdIDMask < uint32(CmdEnd)
}

func (r *Registry) desc(cmd uint32) *Desc { return &r.table[cmd&CmdIDMask] }

// Flags returns the capability flags of a valid command id.
func (r *Registry) Flags(cmd uint32) CmdFlag { return r.desc(cmd).Flags }

// Name returns the human readable command name.
func (r *Registry) Name(cmd uint32) string {
	if !r.IsValid(cmd) {
		return "?unknown?"
	}
	return r.desc(cmd).Name
}

// Type returns the pause-gating category of a command.
func (r *Registry) Type(cmd uint32) CmdType { return r.desc(cmd).Type }

// AllowedWhilePaused reports whether the command may run at the given
// pause level.
func (r *Registry) AllowedWhilePaused(cmd uint32, level PauseLevel) bool {
	if !r.IsValid(cmd) {
		return false
	}
	return level >= minPauseLevel(r.desc(cmd).Type)
}
