package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"railverse.dev/internal/command"
	"railverse.dev/internal/netsync"
	"railverse.dev/internal/transport/ws"
)

// A scripted player: joins a session and builds things at random, at
// a fixed cadence. Useful for soaking the lockstep pipeline and for
// filling the second lobby slot during development.
func main() {
	var (
		url     = flag.String("url", "ws://localhost:8642/v1/ws", "ws url")
		name    = flag.String("name", "bot", "player name")
		company = flag.Uint("company", 1, "company to claim")
		every   = flag.Uint64("every", 30, "act every N ticks")
		seed    = flag.Int64("rng", 7, "bot decision seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	conn, err := ws.Dial(*url)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	cl := netsync.NewClient(conn, netsync.ClientOptions{
		Name:    *name,
		Company: command.CompanyID(*company),
	}, logger)
	if err := cl.Handshake(); err != nil {
		logger.Fatalf("handshake: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	cl.OnTick = func(tick uint64) {
		if tick%*every != 0 {
			return
		}
		act(cl, rng, logger)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := cl.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalf("session: %v", err)
	}
}

func act(cl *netsync.Client, rng *rand.Rand, logger *log.Logger) {
	w := cl.World()
	cfg := w.Config()
	tile := w.TileXY(2+rng.Intn(cfg.Width-4), 2+rng.Intn(cfg.Height-4))

	var env *command.Envelope
	switch rng.Intn(4) {
	case 0:
		env = &command.Envelope{
			Tile: tile,
			Cmd:  uint32(command.CmdBuildTrack),
			P1:   uint32(1 << rng.Intn(4)),
		}
	case 1:
		env = &command.Envelope{Tile: tile, Cmd: uint32(command.CmdBuildObject)}
	case 2:
		env = &command.Envelope{
			Tile: tile,
			Cmd:  uint32(command.CmdPlaceSign),
			Text: "bot territory",
		}
	default:
		env = &command.Envelope{
			Cmd: uint32(command.CmdIncreaseLoan),
			P3:  5000,
		}
	}

	// The local test pass filters out most bad picks (water, void,
	// occupied tiles) without bothering the server.
	res := cl.Frontend().Do(cl.Ctx(), env, false)
	if res.Failed() {
		logger.Printf("tick=%d skipped: %s", cl.Tick(), res.Summary())
		return
	}
	logger.Printf("tick=%d submitted cmd=%d cost=%d", cl.Tick(), env.ID(), res.Money())
}
