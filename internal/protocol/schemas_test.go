package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"railverse.dev/internal/protocol"
)

// Every message the server or a client actually emits must validate
// against its published schema.
func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	cmdSchema := compile("cmd.schema.json")
	tickDoneSchema := compile("tickdone.schema.json")
	resultSchema := compile("result.schema.json")
	desyncSchema := compile("desync.schema.json")
	quitSchema := compile("quit.schema.json")

	validate(helloSchema, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            "alice",
		Company:         0,
	})

	validate(welcomeSchema, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Participant:     2,
		Company:         0,
		Params: protocol.SessionParams{
			TickRateHz:    30,
			TickDelay:     2,
			MapWidth:      64,
			MapHeight:     64,
			Seed:          1337,
			StartingFunds: 100000,
			MaxLoan:       300000,
			CurrentTick:   0,
		},
	})

	validate(welcomeSchema, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Params:          protocol.SessionParams{TickRateHz: 30, TickDelay: 1, MapWidth: 16, MapHeight: 16},
		Error:           protocol.ErrSessionFull,
	})

	validate(cmdSchema, protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Envelope:        "AAAAAAEAAAACAAAAAAAAAAAAAAAEAAAAAAACAAAACgAAAAAAAAAAAAAAAAA=",
	})

	validate(tickDoneSchema, protocol.TickDoneMsg{
		Type:            protocol.TypeTickDone,
		ProtocolVersion: protocol.Version,
		Tick:            14,
		Count:           3,
		DigestTick:      12,
		Digest:          0xCAFEBABE,
	})

	validate(resultSchema, protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrCmdRejected,
		Summary:         "area is not clear (tile 515)",
	})

	validate(desyncSchema, protocol.DesyncMsg{
		Type:            protocol.TypeDesync,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrSessionDesynced,
		Tick:            4711,
		Participant:     3,
		Reason:          "digest mismatch at tick 4711",
	})

	validate(quitSchema, protocol.QuitMsg{
		Type:            protocol.TypeQuit,
		ProtocolVersion: protocol.Version,
	})
}
