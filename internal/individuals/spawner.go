package individuals

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/evacuation-ca/internal/entropy"
)

// Profile describes the attribute distribution of a population group.
// Each attribute is drawn uniformly from value ± Jitter·value.
type Profile struct {
	Age              float64 `yaml:"age"`
	Familiarity      float64 `yaml:"familiarity"`
	PanicFactor      float64 `yaml:"panic_factor"`
	Slackness        float64 `yaml:"slackness"`
	ExhaustionFactor float64 `yaml:"exhaustion_factor"`
	MaxSpeed         float64 `yaml:"max_speed"`
	ReactionTime     float64 `yaml:"reaction_time"`
	Jitter           float64 `yaml:"jitter"`
}

// DefaultProfile returns a typical adult population.
func DefaultProfile() Profile {
	return Profile{
		Age:              35,
		Familiarity:      0.8,
		PanicFactor:      0.5,
		Slackness:        0.1,
		ExhaustionFactor: 0.3,
		MaxSpeed:         0.9,
		ReactionTime:     5,
		Jitter:           0.1,
	}
}

// Spawner creates individuals with sequential IDs.
type Spawner struct {
	rng    *entropy.Source
	nextID ID
}

// NewSpawner creates a spawner drawing from rng. UIDs are drawn from the
// same source so a seeded scenario reproduces them.
func NewSpawner(rng *entropy.Source) *Spawner {
	return &Spawner{rng: rng}
}

// Spawn creates one individual from the profile.
func (s *Spawner) Spawn(p Profile) *Individual {
	id := s.nextID
	s.nextID++

	uid, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		slog.Warn("uuid from seeded source failed, using crypto source", "error", err)
		uid = uuid.New()
	}

	return &Individual{
		ID:               id,
		UID:              uid,
		Age:              max(1, s.jitter(p.Age, p.Jitter)),
		Familiarity:      unit(s.jitter(p.Familiarity, p.Jitter)),
		PanicFactor:      unit(s.jitter(p.PanicFactor, p.Jitter)),
		Slackness:        unit(s.jitter(p.Slackness, p.Jitter)),
		ExhaustionFactor: unit(s.jitter(p.ExhaustionFactor, p.Jitter)),
		MaxSpeed:         clamp(s.jitter(p.MaxSpeed, p.Jitter), 0.05, 1),
		ReactionTime:     max(0, s.jitter(p.ReactionTime, p.Jitter)),
	}
}

func (s *Spawner) jitter(v, j float64) float64 {
	if j <= 0 {
		return v
	}
	return v + (s.rng.Float64()*2-1)*j*v
}

func unit(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
