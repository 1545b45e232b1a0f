// Package scenario loads evacuation scenarios from YAML files and builds
// them into a grid, static potentials and a population.
package scenario

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/evacuation-ca/internal/engine"
	"github.com/talgya/evacuation-ca/internal/entropy"
	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/potential"
	"github.com/talgya/evacuation-ca/internal/rules"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// Layout symbols. Exits are 'E' or a digit; each symbol is one exit group
// sharing a static potential.
const (
	SymbolFloor      = '.'
	SymbolHole       = '#'
	SymbolDoor       = 'D'
	SymbolStair      = 'T'
	SymbolSafe       = 'S'
	SymbolIndividual = 'i'
	SymbolExit       = 'E'
)

// StairSpeed is the speed factor of stair cells.
const StairSpeed = 0.5

// File is the YAML form of a scenario.
type File struct {
	Name        string              `yaml:"name"`
	Config      engine.Config       `yaml:"config"`
	Profile     individuals.Profile `yaml:"profile"`
	Rooms       []RoomSpec          `yaml:"rooms"`
	Doors       []DoorSpec          `yaml:"doors,omitempty"`
	Exits       []ExitSpec          `yaml:"exits,omitempty"`
	ExitMapping map[int]string      `yaml:"exit_mapping,omitempty"` // Individual ID → exit name
}

// RoomSpec describes one room as an ASCII layout, one line per row.
type RoomSpec struct {
	Name   string `yaml:"name"`
	Floor  int    `yaml:"floor"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Layout string `yaml:"layout"`
}

// Pos addresses a cell inside a named room.
type Pos struct {
	Room string `yaml:"room"`
	X    int    `yaml:"x"`
	Y    int    `yaml:"y"`
}

// DoorSpec links two door or stair cells.
type DoorSpec struct {
	From Pos `yaml:"from"`
	To   Pos `yaml:"to"`
}

// ExitSpec names an exit group and sets its attractivity.
type ExitSpec struct {
	Name         string  `yaml:"name"`
	Symbol       string  `yaml:"symbol"`
	Attractivity float64 `yaml:"attractivity"`
}

// Scenario is a built scenario ready to simulate.
type Scenario struct {
	Name    string
	Problem engine.Problem
	Config  engine.Config
}

// Load reads and parses a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a scenario. Fields left out keep their defaults.
func Parse(data []byte) (*File, error) {
	f := &File{
		Config:  engine.DefaultConfig(),
		Profile: individuals.DefaultProfile(),
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: parse scenario: %v", simerr.ErrConfiguration, err)
	}
	if len(f.Rooms) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no rooms", simerr.ErrConfiguration, f.Name)
	}
	return f, nil
}

// Marshal encodes the scenario as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

type exitGroup struct {
	symbol rune
	cells  []*world.Cell
}

// Build constructs the grid, computes one static potential per exit group
// and spawns the population.
func (f *File) Build() (*Scenario, error) {
	g := world.NewGrid()
	rooms := make(map[string]*world.Room, len(f.Rooms))
	var groups []*exitGroup
	bySymbol := make(map[rune]*exitGroup)
	var starts []*world.Cell

	for _, spec := range f.Rooms {
		if _, dup := rooms[spec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate room %q", simerr.ErrConfiguration, spec.Name)
		}
		lines := layoutLines(spec.Layout)
		width := 0
		for _, l := range lines {
			width = max(width, len([]rune(l)))
		}
		room, err := g.AddRoom(spec.Name, width, len(lines), spec.Floor, spec.X, spec.Y)
		if err != nil {
			return nil, err
		}
		rooms[spec.Name] = room

		for y, line := range lines {
			for x, ch := range []rune(line) {
				kind, ok := cellKind(ch)
				if !ok {
					if ch == SymbolHole || ch == ' ' {
						continue
					}
					return nil, fmt.Errorf("%w: room %q has unknown symbol %q at (%d,%d)",
						simerr.ErrConfiguration, spec.Name, ch, x, y)
				}
				c, err := g.AddCell(room.ID, x, y, kind)
				if err != nil {
					return nil, err
				}
				switch {
				case kind == world.KindStair:
					c.SpeedFactor = StairSpeed
				case kind == world.KindExit:
					grp, ok := bySymbol[ch]
					if !ok {
						grp = &exitGroup{symbol: ch}
						bySymbol[ch] = grp
						groups = append(groups, grp)
					}
					grp.cells = append(grp.cells, c)
				case ch == SymbolIndividual:
					starts = append(starts, c)
				}
			}
		}
	}

	for _, d := range f.Doors {
		a, err := resolve(g, rooms, d.From)
		if err != nil {
			return nil, err
		}
		b, err := resolve(g, rooms, d.To)
		if err != nil {
			return nil, err
		}
		if err := g.Link(a.ID, b.ID); err != nil {
			return nil, err
		}
	}

	pm := potential.NewManager(g)
	exitsByName := make(map[string]world.CellID)
	specs := make(map[rune]ExitSpec, len(f.Exits))
	for _, e := range f.Exits {
		sym := []rune(e.Symbol)
		if len(sym) != 1 || bySymbol[sym[0]] == nil {
			return nil, fmt.Errorf("%w: exit %q uses symbol %q which no layout contains",
				simerr.ErrConfiguration, e.Name, e.Symbol)
		}
		specs[sym[0]] = e
	}
	for _, grp := range groups {
		spec := specs[grp.symbol]
		if spec.Name == "" {
			spec.Name = "exit-" + string(grp.symbol)
		}
		if spec.Attractivity <= 0 {
			spec.Attractivity = potential.DefaultAttractivity
		}
		if _, err := pm.Create(spec.Name, grp.cells, spec.Attractivity); err != nil {
			return nil, err
		}
		exitsByName[spec.Name] = grp.cells[0].ID
	}

	spawner := individuals.NewSpawner(entropy.New(f.Config.Seed))
	p := engine.Problem{Grid: g, Potentials: pm}
	for _, c := range starts {
		p.Population = append(p.Population, engine.Placement{Individual: spawner.Spawn(f.Profile), Cell: c.ID})
	}

	if len(f.ExitMapping) > 0 {
		p.ExitMapping = make(rules.ExitMapping, len(f.ExitMapping))
		for id, name := range f.ExitMapping {
			cell, ok := exitsByName[name]
			if !ok {
				return nil, fmt.Errorf("%w: individual %d mapped to unknown exit %q", simerr.ErrConfiguration, id, name)
			}
			p.ExitMapping[individuals.ID(id)] = cell
		}
	}

	slog.Info("scenario built",
		"name", f.Name,
		"rooms", len(g.Rooms()),
		"cells", g.CellCount(),
		"exits", len(groups),
		"individuals", len(p.Population),
	)
	return &Scenario{Name: f.Name, Problem: p, Config: f.Config}, nil
}

func layoutLines(layout string) []string {
	lines := strings.Split(strings.Trim(layout, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \r")
	}
	return lines
}

func cellKind(ch rune) (world.CellKind, bool) {
	switch {
	case ch == SymbolFloor || ch == SymbolIndividual:
		return world.KindRoom, true
	case ch == SymbolExit || (ch >= '0' && ch <= '9'):
		return world.KindExit, true
	case ch == SymbolDoor:
		return world.KindDoor, true
	case ch == SymbolStair:
		return world.KindStair, true
	case ch == SymbolSafe:
		return world.KindSafe, true
	}
	return 0, false
}

func resolve(g *world.Grid, rooms map[string]*world.Room, p Pos) (*world.Cell, error) {
	room, ok := rooms[p.Room]
	if !ok {
		return nil, fmt.Errorf("%w: door references unknown room %q", simerr.ErrConfiguration, p.Room)
	}
	c, err := g.CellAt(room.ID, p.X, p.Y)
	if err != nil {
		return nil, fmt.Errorf("door in %q: %w", p.Room, err)
	}
	return c, nil
}
