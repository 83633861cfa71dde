package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"railverse.dev/internal/command"
	"railverse.dev/internal/netsync"
	"railverse.dev/internal/persistence/cmdlog"
	"railverse.dev/internal/sim/world"
)

// Replays a persisted command stream against a fresh world and prints
// the resulting state digest per interesting tick. Given the digest
// from a desync report, this pinpoints the first diverging command.
func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory (reads <data>/commands)")
		width   = flag.Int("width", 64, "map width")
		height  = flag.Int("height", 64, "map height")
		seed    = flag.Int64("seed", 1337, "map seed")
		funds   = flag.Int64("funds", 100000, "starting funds")
		maxLoan = flag.Int64("max_loan", 300000, "max loan")
		toTick  = flag.Uint64("to_tick", 0, "stop after this tick (0 = all)")
		expect  = flag.String("expect", "", "expected final digest (hex, optional)")
	)
	flag.Parse()

	files, err := filepath.Glob(filepath.Join(*dataDir, "commands", "*.jsonl.zst"))
	if err != nil || len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no command logs under", *dataDir)
		os.Exit(2)
	}
	sort.Strings(files)

	var entries []cmdlog.Entry
	for _, f := range files {
		es, err := cmdlog.Read(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", f, err)
			os.Exit(1)
		}
		entries = append(entries, es...)
	}
	fmt.Printf("replaying %d commands from %d file(s)\n", len(entries), len(files))

	w := world.New(world.Config{
		Width:         *width,
		Height:        *height,
		StartingFunds: command.Money(*funds),
		MaxLoan:       command.Money(*maxLoan),
		Seed:          *seed,
	})
	disp := command.NewDispatcher(w.BuildRegistry(),
		command.NewLogRing(128), command.NewLogRing(256))

	// Rebuild the per-tick buffers and drain them exactly like a live
	// peer would, so the replay order matches the session's.
	buf := netsync.NewTickBuffer()
	perTick := map[uint64]int{}
	var ticks []uint64
	for _, e := range entries {
		env, err := e.Envelope()
		if err != nil {
			fmt.Fprintf(os.Stderr, "tick %d seq %d: %v\n", e.Tick, e.Seq, err)
			os.Exit(1)
		}
		if perTick[env.Tick] == 0 {
			ticks = append(ticks, env.Tick)
		}
		perTick[env.Tick]++
		buf.Put(env)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })

	for _, tick := range ticks {
		if *toTick != 0 && tick > *toTick {
			break
		}
		buf.Close(tick, perTick[tick])
		for _, env := range buf.Drain(tick) {
			env.Cmd |= command.CmdNetworkRouted
			ctx := &command.Context{
				Role:       roleFor(env.Company),
				Mode:       command.ModeServer,
				Company:    env.Company,
				PauseLevel: w.PauseLevel(),
				Tick:       tick,
				State:      w,
			}
			res := disp.Dispatch(ctx, env, command.DoExec)
			if res.Failed() {
				fmt.Printf("tick=%d seq=%d %s FAILED: %s\n",
					tick, env.Seq, disp.Registry().Name(env.Cmd), res.Summary())
			}
		}
		fmt.Printf("tick=%d digest=%016x\n", tick, w.Digest())
	}

	final := w.Digest()
	fmt.Printf("final digest=%016x\n", final)
	if *expect != "" {
		want, err := strconv.ParseUint(*expect, 16, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -expect:", err)
			os.Exit(2)
		}
		if final != want {
			fmt.Fprintf(os.Stderr, "MISMATCH: want %016x\n", want)
			os.Exit(1)
		}
		fmt.Println("digest matches")
	}
}

func roleFor(c command.CompanyID) command.Role {
	switch {
	case c == command.CompanyServer:
		return command.RoleServer
	case c == command.CompanySpectator:
		return command.RoleSpectator
	default:
		return command.RoleCompany
	}
}
