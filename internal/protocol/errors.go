package protocol

const (
	// Handshake/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Session routing/state.
	ErrSessionFull     = "E_SESSION_FULL"
	ErrSessionStarted  = "E_SESSION_STARTED"
	ErrCompanyTaken    = "E_COMPANY_TAKEN"
	ErrSessionDesynced = "E_SESSION_DESYNCED"

	// Command layer.
	ErrCmdRejected  = "E_CMD_REJECTED"
	ErrCmdMalformed = "E_CMD_MALFORMED"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrSessionFull:     {},
	ErrSessionStarted:  {},
	ErrCompanyTaken:    {},
	ErrSessionDesynced: {},
	ErrCmdRejected:     {},
	ErrCmdMalformed:    {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
