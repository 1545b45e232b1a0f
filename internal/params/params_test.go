package params

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/potential"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

func subject() (*individuals.Individual, *individuals.State) {
	ind := &individuals.Individual{
		PanicFactor:      0.5,
		ExhaustionFactor: 0.5,
		Slackness:        0.2,
		MaxSpeed:         0.8,
	}
	st := &individuals.State{Panic: individuals.InitialPanic, RelativeSpeed: ind.MaxSpeed}
	return ind, st
}

func TestLookup(t *testing.T) {
	for _, name := range []string{DefaultSet, NoPanicSet, IdealSet} {
		ps, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, ps.Name)
	}
	assert.Equal(t, []string{DefaultSet, IdealSet, NoPanicSet}, Names())

	_, err := Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownParameterSet)
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

func TestCompile_Rejects(t *testing.T) {
	def := DefaultDefinition()
	def.Formulas.Panic = "Panic +"
	_, err := Compile(def)
	assert.ErrorIs(t, err, simerr.ErrConfiguration)

	def = DefaultDefinition()
	def.Formulas.Idle = "Unknown * 2"
	_, err = Compile(def)
	assert.ErrorIs(t, err, simerr.ErrConfiguration)

	def = DefaultDefinition()
	def.AbsoluteMaxSpeed = 0
	_, err = Compile(def)
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

func TestDefault_Updates(t *testing.T) {
	ps, err := Lookup(DefaultSet)
	require.NoError(t, err)
	ind, st := subject()

	require.NoError(t, ps.UpdatePanic(ind, st, 2))
	assert.InDelta(t, individuals.InitialPanic+0.1, st.Panic, 1e-9)
	require.NoError(t, ps.UpdatePanic(ind, st, 0))
	assert.InDelta(t, individuals.InitialPanic+0.075, st.Panic, 1e-9)
	for i := 0; i < 10; i++ {
		require.NoError(t, ps.UpdatePanic(ind, st, 0))
	}
	assert.Equal(t, individuals.InitialPanic, st.Panic)

	require.NoError(t, ps.UpdateExhaustion(ind, st, true))
	assert.InDelta(t, 0.01, st.Exhaustion, 1e-9)
	require.NoError(t, ps.UpdateExhaustion(ind, st, false))
	assert.InDelta(t, 0.0, st.Exhaustion, 1e-9)
	require.NoError(t, ps.UpdateExhaustion(ind, st, false))
	assert.Equal(t, 0.0, st.Exhaustion)

	st.Exhaustion = 1
	st.Panic = 0
	require.NoError(t, ps.UpdatePreferredSpeed(ind, st))
	assert.InDelta(t, 0.4, st.RelativeSpeed, 1e-9)

	idle, err := ps.IdleThreshold(ind, st)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, idle, 1e-9)
}

func TestIdeal_Constant(t *testing.T) {
	ps, err := Lookup(IdealSet)
	require.NoError(t, err)
	ind, st := subject()
	require.NoError(t, ps.UpdatePanic(ind, st, 5))
	assert.Equal(t, individuals.InitialPanic, st.Panic)
	require.NoError(t, ps.UpdateExhaustion(ind, st, true))
	assert.Equal(t, 0.0, st.Exhaustion)
	require.NoError(t, ps.UpdatePreferredSpeed(ind, st))
	assert.InDelta(t, ind.MaxSpeed, st.RelativeSpeed, 1e-9)
	idle, err := ps.IdleThreshold(ind, st)
	require.NoError(t, err)
	assert.Equal(t, 0.0, idle)
}

func TestSecondsPerStep(t *testing.T) {
	def := DefaultDefinition()
	def.AbsoluteMaxSpeed = 0.41
	ps, err := Compile(def)
	require.NoError(t, err)
	assert.InDelta(t, 0.4/0.41, ps.SecondsPerStep(), 1e-12)
}

func TestEffectivePotential(t *testing.T) {
	ps, err := Lookup(DefaultSet)
	require.NoError(t, err)

	static := potential.NewStatic(0, "s")
	static.SetPotential(1, 20)
	static.SetPotential(2, 10)
	static.SetPotential(3, 30)

	g := world.NewGrid()
	room, _ := g.AddRoom("r", 4, 1, 0, 0, 0)
	for x := 0; x < 4; x++ {
		_, err := g.AddCell(room.ID, x, 0, world.KindRoom)
		require.NoError(t, err)
	}
	dyn := potential.NewDynamic(g)
	dyn.Increase(3)

	assert.InDelta(t, 5.0, ps.EffectivePotential(static, dyn, 1, 2), 1e-9)
	assert.InDelta(t, -5.0+0.1, ps.EffectivePotential(static, dyn, 1, 3), 1e-9)
	assert.Equal(t, -math.MaxFloat64, ps.EffectivePotential(static, dyn, 1, 0))
	assert.Equal(t, -math.MaxFloat64, ps.EffectivePotential(nil, dyn, 1, 2))
}
