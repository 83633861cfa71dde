package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"railverse.dev/internal/persistence/reportdb"
)

// Inspects what a session left behind: desync reports and command
// ring dumps from the report database.
func main() {
	var (
		dbPath = flag.String("db", "./data/reports.db", "report database path")
		limit  = flag.Int("n", 10, "max rows")
	)
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		fmt.Fprintln(os.Stderr, "usage: admin [-db path] [-n rows] desyncs|dumps")
		os.Exit(2)
	}

	db, err := reportdb.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	switch cmd {
	case "desyncs":
		reps, err := db.Desyncs(ctx, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		if len(reps) == 0 {
			fmt.Println("no desync reports")
			return
		}
		for _, r := range reps {
			fmt.Printf("%s tick=%d participant=%d digest=%016x %s\n",
				r.At.Format("2006-01-02 15:04:05"), r.Tick, r.Participant, r.Digest, r.Reason)
		}
	case "dumps":
		dumps, err := db.Dumps(ctx, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		if len(dumps) == 0 {
			fmt.Println("no command dumps")
			return
		}
		for _, d := range dumps {
			fmt.Printf("--- %s tick=%d ring=%s\n%s\n", d.At, d.Tick, d.Ring, d.Text)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", cmd)
		os.Exit(2)
	}
}
