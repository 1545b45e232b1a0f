package rules

import (
	"fmt"
	"math"

	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/world"
)

// MaxScore bounds effective potentials before exponentiation so that
// exp never overflows.
const MaxScore = 700.0

// SwayBoost multiplies the weight of targets that keep the current heading
// when the best target would make the individual turn.
const SwayBoost = 10.5

// Movement is the waiting movement rule. Alarmed individuals whose previous
// move has ended either idle or move to the best cell within their facing
// arc. With Swaying set the target is sampled with probability
// proportional to exp(score) instead of taken as the maximum.
type Movement struct {
	Swaying bool
}

func (m *Movement) Name() string {
	if m.Swaying {
		return "movement-swaying"
	}
	return "movement"
}

func (m *Movement) Applicable(ctx *Context, cell *world.Cell) bool {
	_, _, ok := ctx.occupant(cell)
	return ok
}

func (m *Movement) Execute(ctx *Context, cell *world.Cell) error {
	ind, st, _ := ctx.occupant(cell)
	if !st.Alarmed {
		st.Waits++
		return nil
	}
	if float64(ctx.Step) < st.StepEnd {
		// Still walking the previous move.
		return nil
	}

	idle, err := ctx.Params.IdleThreshold(ind, st)
	if err != nil {
		return err
	}
	if idle > ctx.Rand.Float64() {
		st.Waits++
		if err := ctx.Params.UpdateExhaustion(ind, st, false); err != nil {
			return err
		}
		return ctx.Params.UpdatePreferredSpeed(ind, st)
	}

	targets := Candidates(ctx, cell, true)
	if ctx.Registry.IsSafe(ind.ID) {
		// Safe individuals only step closer to an exit; otherwise they rest.
		targets = m.improving(ctx, cell, st, targets)
	}
	target := m.selectTarget(ctx, cell, st, targets)
	if target == cell {
		// An empty arc turns toward the best neighbor rather than idling.
		if err := m.turn(ctx, cell, ind, st); err != nil {
			return err
		}
	} else if err := m.move(ctx, cell, target, ind, st); err != nil {
		return err
	}
	return ctx.Params.UpdatePreferredSpeed(ind, st)
}

// Candidates returns the neighbors an individual on cell may step to: those
// within two rotational steps of its facing direction, plus linked doors.
// Safe individuals never step onto unsafe cells.
func Candidates(ctx *Context, cell *world.Cell, onlyFree bool) []*world.Cell {
	ind, st, ok := ctx.occupant(cell)
	if !ok {
		return nil
	}
	neighbors := ctx.Grid.Neighbors(cell)
	if onlyFree {
		neighbors = ctx.Grid.FreeNeighbors(cell)
	}
	safe := ctx.Registry.IsSafe(ind.ID)
	var out []*world.Cell
	for _, n := range neighbors {
		if safe && !n.IsSafe() {
			continue
		}
		if cell.IsDoor() && n.IsDoor() {
			out = append(out, n)
			continue
		}
		rel, err := ctx.Grid.RelativeDirection(cell, n)
		if err != nil {
			continue
		}
		if world.Rotation(st.Direction, rel) <= 2 {
			out = append(out, n)
		}
	}
	return out
}

// SelectMax returns the index of the highest score, the first one on ties,
// or -1 for no scores.
func SelectMax(scores []float64) int {
	best := -1
	bestScore := math.Inf(-1)
	for i, s := range scores {
		if s > bestScore {
			bestScore = s
			best = i
		}
	}
	return best
}

func clampScore(s float64) float64 {
	return max(-MaxScore, min(MaxScore, s))
}

func (m *Movement) scores(ctx *Context, cell *world.Cell, st *individuals.State, targets []*world.Cell) []float64 {
	out := make([]float64, len(targets))
	for i, t := range targets {
		out[i] = ctx.Params.EffectivePotential(st.Static, st.Dynamic, cell.ID, t.ID)
	}
	return out
}

// improving keeps the targets that score strictly better than staying put.
func (m *Movement) improving(ctx *Context, cell *world.Cell, st *individuals.State, targets []*world.Cell) []*world.Cell {
	var out []*world.Cell
	for i, s := range m.scores(ctx, cell, st, targets) {
		if s > 0 {
			out = append(out, targets[i])
		}
	}
	return out
}

// selectTarget picks the next cell, or the current cell if there is none.
func (m *Movement) selectTarget(ctx *Context, cell *world.Cell, st *individuals.State, targets []*world.Cell) *world.Cell {
	if len(targets) == 0 {
		return cell
	}
	if !m.Swaying {
		return targets[SelectMax(m.scores(ctx, cell, st, targets))]
	}
	return targets[ctx.Rand.ChooseWeighted(m.weights(ctx, cell, st, targets))]
}

// weights are the swaying selection weights: exp of the clamped score,
// boosted for targets straight ahead when the best target would turn the
// individual. Targets spread over several rooms get no boost.
func (m *Movement) weights(ctx *Context, cell *world.Cell, st *individuals.State, targets []*world.Cell) []float64 {
	scores := m.scores(ctx, cell, st, targets)
	p := make([]float64, len(scores))
	for i, s := range scores {
		p[i] = math.Exp(clampScore(s))
	}
	for _, t := range targets {
		if t.Room != cell.Room {
			return p
		}
	}
	old := st.Direction
	best := targets[SelectMax(scores)]
	if dir, err := ctx.Grid.RelativeDirection(cell, best); err != nil || dir == old {
		return p
	}
	for i, t := range targets {
		if d, err := ctx.Grid.RelativeDirection(cell, t); err == nil && d == old {
			p[i] *= SwayBoost
		}
	}
	return p
}

// SwayDelay is the extra time in steps needed to turn from one heading to
// another.
func SwayDelay(from, to world.Direction8) float64 {
	switch world.Rotation(from, to) {
	case 0:
		return 0
	case 1:
		return 0.5
	case 2:
		return 1
	default:
		return 2
	}
}

// blocked counts occupied neighbors that would have scored better than the
// chosen target.
func (m *Movement) blocked(ctx *Context, cell, target *world.Cell, st *individuals.State) int {
	score := ctx.Params.EffectivePotential(st.Static, st.Dynamic, cell.ID, target.ID)
	n := 0
	for _, c := range ctx.Grid.Neighbors(cell) {
		if c.IsOccupied() && ctx.Params.EffectivePotential(st.Static, st.Dynamic, cell.ID, c.ID) > score {
			n++
		}
	}
	return n
}

func (m *Movement) move(ctx *Context, from, to *world.Cell, ind *individuals.Individual, st *individuals.State) error {
	dir := st.Direction
	if d, err := ctx.Grid.RelativeDirection(from, to); err == nil {
		dir = d
	}
	dist := 1.0
	if dir.IsDiagonal() && !(from.IsDoor() && to.IsDoor()) {
		dist = math.Sqrt2
	}

	if err := ctx.Params.UpdatePanic(ind, st, m.blocked(ctx, from, to, st)); err != nil {
		return err
	}
	if err := ctx.Params.UpdateExhaustion(ind, st, true); err != nil {
		return err
	}

	speed := st.RelativeSpeed * to.SpeedFactor
	if speed <= 0 {
		return fmt.Errorf("move individual %d to %s: non-positive speed %v", ind.ID, to, speed)
	}
	m.schedule(ctx, st, dist/speed+SwayDelay(st.Direction, dir))

	if err := ctx.Grid.Move(from, to); err != nil {
		return fmt.Errorf("move individual %d: %w", ind.ID, err)
	}
	st.Dynamic.Increase(from.ID)
	st.Cell = to.ID
	st.Direction = dir
	st.Moves++
	return nil
}

// turn rotates an individual whose facing arc holds no free cell toward the
// best neighbor overall, so it cannot stay stuck facing a wall.
func (m *Movement) turn(ctx *Context, cell *world.Cell, ind *individuals.Individual, st *individuals.State) error {
	st.Waits++
	if err := ctx.Params.UpdateExhaustion(ind, st, false); err != nil {
		return err
	}
	neighbors := ctx.Grid.Neighbors(cell)
	if len(neighbors) == 0 {
		return nil
	}
	if ctx.Registry.IsSafe(ind.ID) {
		safe := neighbors[:0:0]
		for _, n := range neighbors {
			if n.IsSafe() {
				safe = append(safe, n)
			}
		}
		neighbors = m.improving(ctx, cell, st, safe)
	}
	if len(neighbors) == 0 {
		return nil
	}
	best := neighbors[SelectMax(m.scores(ctx, cell, st, neighbors))]
	dir, err := ctx.Grid.RelativeDirection(cell, best)
	if err != nil || world.Rotation(st.Direction, dir) <= 2 {
		// Best cell is ahead but occupied; wait for it.
		return ctx.Params.UpdatePanic(ind, st, 1)
	}
	m.schedule(ctx, st, SwayDelay(st.Direction, dir))
	st.Direction = dir
	return nil
}

func (m *Movement) schedule(ctx *Context, st *individuals.State, duration float64) {
	st.StepStart = max(st.StepEnd, float64(ctx.Step))
	st.StepEnd = st.StepStart + duration
	ctx.NeededTime = max(ctx.NeededTime, int(math.Ceil(st.StepEnd)))
}
