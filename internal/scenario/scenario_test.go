package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacuation-ca/internal/engine"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

const twoRooms = `
name: office
config:
  max_steps: 200
  seed: 7
  rule_set: default
profile:
  familiarity: 1
  max_speed: 1
  reaction_time: 0
  jitter: 0
rooms:
  - name: hall
    layout: |
      E...
      ..iD
  - name: office
    x: 4
    layout: |
      D.i.
      .T.S
doors:
  - from: {room: hall, x: 3, y: 1}
    to: {room: office, x: 0, y: 0}
exits:
  - name: front
    symbol: E
    attractivity: 80
exit_mapping:
  1: front
`

func TestParse_Defaults(t *testing.T) {
	f, err := Parse([]byte("name: tiny\nrooms:\n  - name: r\n    layout: E.i\n"))
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfig(), f.Config)
	assert.Equal(t, "tiny", f.Name)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("rooms: ["))
	assert.ErrorIs(t, err, simerr.ErrConfiguration)

	_, err = Parse([]byte("name: empty\n"))
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

func TestBuild_TwoRooms(t *testing.T) {
	f, err := Parse([]byte(twoRooms))
	require.NoError(t, err)
	sc, err := f.Build()
	require.NoError(t, err)

	g := sc.Problem.Grid
	assert.Len(t, g.Rooms(), 2)
	assert.Equal(t, 16, g.CellCount())
	require.Len(t, g.Exits(), 1)
	require.Len(t, sc.Problem.Population, 2)
	assert.Equal(t, 200, sc.Config.MaxSteps)

	statics := sc.Problem.Potentials.Statics()
	require.Len(t, statics, 1)
	assert.Equal(t, "front", statics[0].Name)
	assert.Equal(t, 80.0, statics[0].Attractivity)

	// The office is only reachable through the door pair.
	office := g.Rooms()[1]
	far, err := g.CellAt(office.ID, 3, 1)
	require.NoError(t, err)
	assert.True(t, statics[0].Reachable(far.ID))
	assert.Equal(t, world.KindSafe, far.Kind)

	stair, err := g.CellAt(office.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, StairSpeed, stair.SpeedFactor)

	require.Contains(t, sc.Problem.ExitMapping, sc.Problem.Population[1].Individual.ID)
	assert.Equal(t, g.Exits()[0].ID, sc.Problem.ExitMapping[1])
}

func TestBuild_Runs(t *testing.T) {
	f, err := Parse([]byte(twoRooms))
	require.NoError(t, err)
	sc, err := f.Build()
	require.NoError(t, err)

	sim, err := engine.New(sc.Problem, sc.Config)
	require.NoError(t, err)
	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stats.Dead)
	assert.Equal(t, 2, res.Stats.Safe)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown symbol", "rooms:\n  - name: r\n    layout: E?i\n", simerr.ErrConfiguration},
		{"duplicate room", "rooms:\n  - name: r\n    layout: E\n  - name: r\n    layout: E\n", simerr.ErrConfiguration},
		{"unknown door room", "rooms:\n  - name: r\n    layout: ED\ndoors:\n  - from: {room: r, x: 1, y: 0}\n    to: {room: q, x: 0, y: 0}\n", simerr.ErrConfiguration},
		{"door on floor", "rooms:\n  - name: a\n    layout: E.\n  - name: b\n    layout: D\ndoors:\n  - from: {room: a, x: 1, y: 0}\n    to: {room: b, x: 0, y: 0}\n", simerr.ErrInvalidTopology},
		{"door out of bounds", "rooms:\n  - name: a\n    layout: ED\n  - name: b\n    layout: D\ndoors:\n  - from: {room: a, x: 5, y: 0}\n    to: {room: b, x: 0, y: 0}\n", simerr.ErrInvalidTopology},
		{"unused exit symbol", "rooms:\n  - name: r\n    layout: E.\nexits:\n  - name: back\n    symbol: \"2\"\n", simerr.ErrConfiguration},
		{"unknown mapped exit", "rooms:\n  - name: r\n    layout: E.i\nexit_mapping:\n  0: nowhere\n", simerr.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = f.Build()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "office.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoRooms), 0o644))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "office", f.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	f, err := Generate(SmallTestConfig())
	require.NoError(t, err)
	require.Len(t, f.Rooms, 2)
	require.Len(t, f.Doors, 1)

	sc, err := f.Build()
	require.NoError(t, err)
	assert.Len(t, sc.Problem.Potentials.Statics(), 2)

	// Doors keep every room connected to the main exit.
	main := sc.Problem.Potentials.Statics()[1]
	assert.Equal(t, "main", main.Name)
	first := sc.Problem.Grid.Rooms()[0]
	door, err := sc.Problem.Grid.CellAt(first.ID, SmallTestConfig().RoomWidth-1, SmallTestConfig().RoomHeight/2)
	require.NoError(t, err)
	assert.True(t, main.Reachable(door.ID))
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(SmallTestConfig())
	require.NoError(t, err)
	b, err := Generate(SmallTestConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	data, err := a.Marshal()
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, a.Rooms, back.Rooms)
}

func TestGenerate_RejectsTinyRooms(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.RoomWidth = 2
	_, err := Generate(cfg)
	assert.Error(t, err)
}

func TestLoad_BundledOffice(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "scenarios", "office.yaml"))
	require.NoError(t, err)
	sc, err := f.Build()
	require.NoError(t, err)
	assert.Len(t, sc.Problem.Population, 10)
	assert.Len(t, sc.Problem.Potentials.Statics(), 2)
	assert.Equal(t, engine.OrderFrontToBack, sc.Config.Order)

	sim, err := engine.New(sc.Problem, sc.Config)
	require.NoError(t, err)
	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.Initial)
	assert.Equal(t, res.Initial, res.Safe+res.Dead)
}
