package command

// Money is the currency unit used by all command costs. Costs may be
// negative (income).
type Money int64

// Tile addresses one map tile. The world decides how indices map to
// coordinates; the command layer only carries them.
type Tile uint32

const InvalidTile Tile = 0xFFFFFFFF

// CompanyID identifies the acting company of a command.
type CompanyID uint8

const (
	CompanyFirst     CompanyID = 0
	CompanyMax       CompanyID = 15
	CompanySpectator CompanyID = 254
	CompanyServer    CompanyID = 255
)

// ParticipantID identifies a session participant (connection), not a
// company. The server is always participant 1.
type ParticipantID uint32

const ParticipantServer ParticipantID = 1

// Role is the session role of the participant issuing a command.
type Role uint8

const (
	RoleCompany Role = iota
	RoleSpectator
	RoleServer
)

// Mode is the session mode the dispatch runs under.
type Mode uint8

const (
	ModeOffline Mode = iota // single player, no replication
	ModeClient              // connected to an authoritative server
	ModeServer              // authoritative server
)

// ExpenseType categorizes a cost for the finances view.
type ExpenseType uint8

const (
	ExpenseConstruction ExpenseType = iota
	ExpenseNewVehicles
	ExpenseTrainRun
	ExpenseProperty
	ExpenseLoanInterest
	ExpenseOther
	ExpenseInvalid ExpenseType = 0xFF
)

// Message is a localizable message code carried by command results.
// MsgNone is the "no error" sentinel.
type Message uint16

const (
	MsgNone Message = iota
	MsgInvalidCommand
	MsgNoPermission
	MsgPaused
	MsgNotEnoughCash
	MsgOffsiteConstruction
	MsgAreaNotClear
	MsgLandSloped
	MsgOwnedByAnotherCompany
	MsgAlreadyBuilt
	MsgTooCloseToEdge
	MsgVehicleNotAvailable
	MsgVehicleInUse
	MsgLoanLimitReached
	MsgNoLoanToRepay
	MsgNameTooLong
	MsgSignNotFound
	MsgCanNotPauseHere
	MsgUnknownSetting
	MsgBuildOnWater
	MsgBuildOnVoid
	MsgFoundationRequired
	MsgNothingToRemove
	MsgCompanyExists
	msgEnd
)

var msgText = map[Message]string{
	MsgNone:                  "",
	MsgInvalidCommand:        "invalid command",
	MsgNoPermission:          "permission denied",
	MsgPaused:                "action not allowed while paused",
	MsgNotEnoughCash:         "not enough cash, requires %d more",
	MsgOffsiteConstruction:   "too far from existing property",
	MsgAreaNotClear:          "area is not clear",
	MsgLandSloped:            "land sloped in wrong direction",
	MsgOwnedByAnotherCompany: "owned by another company",
	MsgAlreadyBuilt:          "already built",
	MsgTooCloseToEdge:        "too close to map edge",
	MsgVehicleNotAvailable:   "vehicle is not available",
	MsgVehicleInUse:          "vehicle is in use",
	MsgLoanLimitReached:      "loan limit reached",
	MsgNoLoanToRepay:         "no loan to repay",
	MsgNameTooLong:           "name too long",
	MsgSignNotFound:          "sign not found",
	MsgCanNotPauseHere:       "pause state can not be changed",
	MsgUnknownSetting:        "unknown setting",
	MsgBuildOnWater:          "can not build on water",
	MsgBuildOnVoid:           "off the edge of the map",
	MsgFoundationRequired:    "additional foundation required",
	MsgNothingToRemove:       "nothing to remove here",
	MsgCompanyExists:         "company already exists",
}

// Text returns the raw (unparameterized) message text.
func (m Message) Text() string { return msgText[m] }

// PauseLevel controls which command categories may run while the
// session is paused. Higher levels allow more.
type PauseLevel uint8

const (
	PauseLevelNoActions PauseLevel = iota
	PauseLevelNoConstruction
	PauseLevelNoLandscaping
	PauseLevelAllActions
)

// CmdType is the category of a command, used for pause gating.
type CmdType uint8

const (
	CmdTypeLandscapeConstruction CmdType = iota
	CmdTypeVehicleConstruction
	CmdTypeMoneyManagement
	CmdTypeVehicleManagement
	CmdTypeOtherManagement
	CmdTypeServerSetting
	CmdTypeCheat
)

// minPauseLevel returns the pause level required for a command type to
// run. The current level must be >= this for the command to proceed.
func minPauseLevel(t CmdType) PauseLevel {
	switch t {
	case CmdTypeLandscapeConstruction:
		return PauseLevelAllActions
	case CmdTypeVehicleConstruction:
		return PauseLevelNoLandscaping
	case CmdTypeMoneyManagement, CmdTypeVehicleManagement, CmdTypeOtherManagement:
		return PauseLevelNoConstruction
	default:
		// Server settings and cheats run at any pause level.
		return PauseLevelNoActions
	}
}
