package scenario

import (
	"fmt"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/evacuation-ca/internal/engine"
	"github.com/talgya/evacuation-ca/internal/entropy"
	"github.com/talgya/evacuation-ca/internal/individuals"
)

// GenConfig holds floor plan generation parameters.
type GenConfig struct {
	Rooms      int     // Rooms in a row, joined by doors
	RoomWidth  int     // Cells per room row
	RoomHeight int     // Rows per room
	Seed       int64   // Noise seed (0 = random)
	Obstacles  float64 // Noise threshold above which a cell becomes a pillar (0.0–1.0)
	Density    float64 // Share of free floor cells that start occupied (0.0–1.0)
	Octaves    int
	Frequency  float64
}

// DefaultGenConfig returns a three-room corridor with light furniture.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Rooms:      3,
		RoomWidth:  12,
		RoomHeight: 9,
		Seed:       0,
		Obstacles:  0.72,
		Density:    0.25,
		Octaves:    3,
		Frequency:  0.18,
	}
}

// SmallTestConfig returns a tiny plan for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Rooms:      2,
		RoomWidth:  6,
		RoomHeight: 5,
		Seed:       42,
		Obstacles:  0.8,
		Density:    0.3,
		Octaves:    2,
		Frequency:  0.25,
	}
}

// Generate lays out a row of rooms. Neighboring rooms share a door pair on
// the middle row, which is kept clear. The main exit sits on the east wall
// of the last room, a secondary exit on the west wall of the first.
func Generate(cfg GenConfig) (*File, error) {
	if cfg.Rooms < 1 || cfg.RoomWidth < 3 || cfg.RoomHeight < 3 {
		return nil, fmt.Errorf("generate: need at least one 3x3 room, got %d rooms of %dx%d",
			cfg.Rooms, cfg.RoomWidth, cfg.RoomHeight)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.CryptoSeed()
	}

	pillarNoise := opensimplex.NewNormalized(seed)
	crowdNoise := opensimplex.NewNormalized(seed + 1)

	w, h := cfg.RoomWidth, cfg.RoomHeight
	mid := h / 2
	f := &File{
		Name:    fmt.Sprintf("generated-%d", seed),
		Config:  engine.DefaultConfig(),
		Profile: individuals.DefaultProfile(),
		Exits: []ExitSpec{
			{Name: "main", Symbol: "E", Attractivity: 100},
			{Name: "side", Symbol: "1", Attractivity: 60},
		},
	}
	f.Config.Seed = seed

	for r := 0; r < cfg.Rooms; r++ {
		rows := make([][]rune, h)
		for y := range rows {
			rows[y] = []rune(strings.Repeat(string(SymbolFloor), w))
			for x := range rows[y] {
				if y == mid || x == 0 || x == w-1 || y == 0 || y == h-1 {
					continue
				}
				ax, ay := float64(r*w+x), float64(y)
				if octaveNoise(pillarNoise, ax, ay, cfg.Octaves, cfg.Frequency, 0.5) > cfg.Obstacles {
					rows[y][x] = SymbolHole
				} else if crowdNoise.Eval2(ax*0.9, ay*0.9) < cfg.Density {
					rows[y][x] = SymbolIndividual
				}
			}
		}
		if r == 0 {
			rows[mid][0] = '1'
		} else {
			rows[mid][0] = SymbolDoor
		}
		if r == cfg.Rooms-1 {
			rows[mid][w-1] = SymbolExit
		} else {
			rows[mid][w-1] = SymbolDoor
		}

		lines := make([]string, h)
		for y := range rows {
			lines[y] = string(rows[y])
		}
		name := fmt.Sprintf("room-%d", r)
		f.Rooms = append(f.Rooms, RoomSpec{Name: name, X: r * w, Layout: strings.Join(lines, "\n")})
		if r > 0 {
			f.Doors = append(f.Doors, DoorSpec{
				From: Pos{Room: fmt.Sprintf("room-%d", r-1), X: w - 1, Y: mid},
				To:   Pos{Room: name, X: 0, Y: mid},
			})
		}
	}
	return f, nil
}

// octaveNoise sums multiple octaves of noise for natural-looking clusters.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	octaves = max(1, octaves)
	total, amplitude, maxVal := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
