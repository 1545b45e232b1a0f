package params

// Built-in parameter sets.
const (
	DefaultSet = "default"
	NoPanicSet = "no-panic"
	IdealSet   = "ideal"
)

// DefaultDefinition returns the standard behavior: panic grows while
// preferred cells are blocked and fades otherwise, walking tires, and both
// feed back into speed.
func DefaultDefinition() Definition {
	return Definition{
		Name:             DefaultSet,
		StaticWeight:     0.5,
		DynamicWeight:    0.1,
		DynamicIncrease:  0.3,
		DynamicDecrease:  0.3,
		CellSize:         0.4,
		AbsoluteMaxSpeed: 1.6,
		Formulas: Formulas{
			Panic:      "max(0.0001, min(1.0, Blocked > 0 ? Panic + PanicFactor * 0.1 * Blocked : Panic - PanicFactor * 0.05))",
			Exhaustion: "Moved ? min(1.0, Exhaustion + ExhaustionFactor * 0.02) : max(0.0, Exhaustion - 0.01)",
			Speed:      "max(0.05, min(1.0, MaxSpeed * (1 + 0.3 * Panic) * (1 - 0.5 * Exhaustion)))",
			Idle:       "Slackness * (1 - Panic)",
		},
	}
}

func noPanicDefinition() Definition {
	def := DefaultDefinition()
	def.Name = NoPanicSet
	def.Formulas.Panic = "0.0001"
	def.Formulas.Speed = "max(0.05, min(1.0, MaxSpeed * (1 - 0.5 * Exhaustion)))"
	return def
}

// idealDefinition models individuals walking at full speed straight down the
// static field.
func idealDefinition() Definition {
	def := DefaultDefinition()
	def.Name = IdealSet
	def.StaticWeight = 1
	def.DynamicWeight = 0
	def.Formulas = Formulas{
		Panic:      "0.0001",
		Exhaustion: "0.0",
		Speed:      "max(0.05, min(1.0, MaxSpeed))",
		Idle:       "0.0",
	}
	return def
}

func init() {
	for _, def := range []Definition{DefaultDefinition(), noPanicDefinition(), idealDefinition()} {
		if err := Register(def); err != nil {
			panic(err)
		}
	}
}
