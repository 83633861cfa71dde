// Package world holds the replicated game-rule state of a session:
// the tile map, companies, vehicles and signs the command handlers
// mutate. It is deliberately compact; it exists to give the command
// envelope real rules to carry, not to be a full game.
package world

import (
	"fmt"
	"hash/fnv"
	"sort"

	"railverse.dev/internal/command"
)

// TileKind is what currently occupies a tile.
type TileKind uint8

const (
	TileClear TileKind = iota
	TileWater
	TileVoid // map border, unbuildable
	TileTrack
	TileObject
)

type TileInfo struct {
	Kind  TileKind
	Owner command.CompanyID
	Param uint8 // track bits or object type
}

type Company struct {
	Active   bool
	Funds    command.Money
	Loan     command.Money
	Expenses [6]command.Money
}

type Vehicle struct {
	ID      uint32
	Owner   command.CompanyID
	Engine  uint32
	Running bool
	Value   command.Money
}

type Sign struct {
	ID    uint32
	Owner command.CompanyID
	Tile  command.Tile
	Text  string
}

// Config describes a fresh world.
type Config struct {
	Width, Height int
	StartingFunds command.Money
	MaxLoan       command.Money
	Seed          int64
}

func DefaultConfig() Config {
	return Config{Width: 64, Height: 64, StartingFunds: 100000, MaxLoan: 300000, Seed: 1}
}

// World is the per-peer simulation state. It is owned by exactly one
// goroutine; the execute pass of a command is the only writer.
type World struct {
	cfg Config

	tiles     []TileInfo
	heights   []int8
	companies [command.CompanyMax + 1]Company
	vehicles  map[uint32]*Vehicle
	signs     map[uint32]*Sign
	settings  map[string]uint32

	nextVehicleID uint32
	nextSignID    uint32

	pauseLevel command.PauseLevel
	paused     bool
}

// New creates a deterministic fresh world: same config, same tiles.
// A simple seeded LCG carves water so peers agree without sharing
// terrain data.
func New(cfg Config) *World {
	w := &World{
		cfg:        cfg,
		tiles:      make([]TileInfo, cfg.Width*cfg.Height),
		heights:    make([]int8, cfg.Width*cfg.Height),
		vehicles:   map[uint32]*Vehicle{},
		signs:      map[uint32]*Sign{},
		settings:   map[string]uint32{"economy.town_growth": 2, "vehicles.max_per_company": 64},
		pauseLevel: command.PauseLevelAllActions,
	}
	rng := uint64(cfg.Seed)*6364136223846793005 + 1442695040888963407
	for i := range w.tiles {
		x, y := i%cfg.Width, i/cfg.Width
		if x == 0 || y == 0 || x == cfg.Width-1 || y == cfg.Height-1 {
			w.tiles[i].Kind = TileVoid
			continue
		}
		rng = rng*6364136223846793005 + 1442695040888963407
		if rng>>58 == 0 { // sparse lakes
			w.tiles[i].Kind = TileWater
		}
	}
	return w
}

func (w *World) Config() Config { return w.cfg }

// ActivateCompany brings a company into the game with starting funds.
func (w *World) ActivateCompany(c command.CompanyID) error {
	if c > command.CompanyMax {
		return fmt.Errorf("company id %d out of range", c)
	}
	if w.companies[c].Active {
		return fmt.Errorf("company %d already active", c)
	}
	w.companies[c] = Company{Active: true, Funds: w.cfg.StartingFunds}
	return nil
}

func (w *World) Company(c command.CompanyID) *Company {
	if c > command.CompanyMax {
		return nil
	}
	return &w.companies[c]
}

func (w *World) Vehicle(id uint32) *Vehicle { return w.vehicles[id] }

func (w *World) SignByID(id uint32) *Sign { return w.signs[id] }

func (w *World) vehicleCount(c command.CompanyID) int {
	n := 0
	for _, v := range w.vehicles {
		if v.Owner == c {
			n++
		}
	}
	return n
}

// ValidTile reports whether t addresses the map at all.
func (w *World) ValidTile(t command.Tile) bool {
	return int(t) < len(w.tiles)
}

func (w *World) Tile(t command.Tile) *TileInfo {
	if !w.ValidTile(t) {
		return nil
	}
	return &w.tiles[t]
}

func (w *World) TileXY(x, y int) command.Tile {
	return command.Tile(y*w.cfg.Width + x)
}

func (w *World) adjacentWater(t command.Tile) bool {
	x, y := int(t)%w.cfg.Width, int(t)/w.cfg.Width
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || ny < 0 || nx >= w.cfg.Width || ny >= w.cfg.Height {
			continue
		}
		if w.tiles[w.TileXY(nx, ny)].Kind == TileWater {
			return true
		}
	}
	return false
}

// PauseLevel is the current pause gate for command categories.
func (w *World) PauseLevel() command.PauseLevel {
	if !w.paused {
		return command.PauseLevelAllActions
	}
	return w.pauseLevel
}

func (w *World) Paused() bool { return w.paused }

func (w *World) Setting(name string) (uint32, bool) {
	v, ok := w.settings[name]
	return v, ok
}

// AvailableMoney implements command.State. The server company has no
// budget: administrative commands never fail on funds.
func (w *World) AvailableMoney(c command.CompanyID) command.Money {
	if c > command.CompanyMax {
		return 1 << 60
	}
	return w.companies[c].Funds
}

// ApplyExpense implements command.State: book an executed command's
// cost against the acting company.
func (w *World) ApplyExpense(c command.CompanyID, cost command.Cost) {
	if c > command.CompanyMax || cost.Money() == 0 {
		return
	}
	comp := &w.companies[c]
	comp.Funds -= cost.Money()
	if e := cost.Expense(); e != command.ExpenseInvalid && int(e) < len(comp.Expenses) {
		comp.Expenses[e] += cost.Money()
	}
}

// Digest hashes the full replicated state. Two peers that executed the
// same command stream have equal digests; anything else is a desync.
func (w *World) Digest() uint64 {
	h := fnv.New64a()
	buf := make([]byte, 0, 64)
	put := func(vs ...uint64) {
		buf = buf[:0]
		for _, v := range vs {
			for s := 0; s < 64; s += 8 {
				buf = append(buf, byte(v>>s))
			}
		}
		h.Write(buf)
	}
	for i, t := range w.tiles {
		if t.Kind == TileClear || t.Kind == TileVoid || t.Kind == TileWater {
			continue
		}
		put(uint64(i), uint64(t.Kind), uint64(t.Owner), uint64(t.Param))
	}
	for i, ht := range w.heights {
		if ht != 0 {
			put(uint64(i), uint64(uint8(ht)))
		}
	}
	for i, c := range w.companies {
		if !c.Active {
			continue
		}
		put(uint64(i), uint64(c.Funds), uint64(c.Loan))
	}
	for _, id := range sortedKeys(w.vehicles) {
		v := w.vehicles[id]
		r := uint64(0)
		if v.Running {
			r = 1
		}
		put(uint64(id), uint64(v.Owner), uint64(v.Engine), r, uint64(v.Value))
	}
	for _, id := range sortedKeys(w.signs) {
		s := w.signs[id]
		put(uint64(id), uint64(s.Owner), uint64(s.Tile))
		h.Write([]byte(s.Text))
	}
	if w.paused {
		put(1, uint64(w.pauseLevel))
	}
	for _, k := range sortedStringKeys(w.settings) {
		h.Write([]byte(k))
		put(uint64(w.settings[k]))
	}
	return h.Sum64()
}

func sortedKeys[V any](m map[uint32]V) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
