// Package persistence provides SQLite-based storage of simulation runs and
// their per-individual outcomes.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/evacuation-ca/internal/engine"
	"github.com/talgya/evacuation-ca/internal/individuals"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scenario TEXT NOT NULL,
		rule_set TEXT NOT NULL,
		parameter_set TEXT NOT NULL,
		iteration_order TEXT NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		needed_time INTEGER NOT NULL,
		initial INTEGER NOT NULL,
		evacuated INTEGER NOT NULL,
		dead INTEGER NOT NULL,
		safe INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS individuals (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		id INTEGER NOT NULL,
		uid TEXT NOT NULL,
		status TEXT NOT NULL,
		death_cause TEXT NOT NULL,
		age REAL NOT NULL,
		familiarity REAL NOT NULL,
		panic_factor REAL NOT NULL,
		slackness REAL NOT NULL,
		exhaustion_factor REAL NOT NULL,
		max_speed REAL NOT NULL,
		reaction_time REAL NOT NULL,
		cell INTEGER NOT NULL,
		potential TEXT NOT NULL,
		panic REAL NOT NULL,
		exhaustion REAL NOT NULL,
		initial_distance REAL NOT NULL,
		min_exit_distance REAL NOT NULL,
		safety_time INTEGER NOT NULL,
		evacuation_time INTEGER NOT NULL,
		moves INTEGER NOT NULL,
		waits INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_individuals_status ON individuals(run_id, status);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one stored simulation run.
type Run struct {
	ID           int64  `db:"id" json:"id"`
	Scenario     string `db:"scenario" json:"scenario"`
	RuleSet      string `db:"rule_set" json:"rule_set"`
	ParameterSet string `db:"parameter_set" json:"parameter_set"`
	Order        string `db:"iteration_order" json:"order"`
	Seed         int64  `db:"seed" json:"seed"`
	Steps        int    `db:"steps" json:"steps"`
	NeededTime   int    `db:"needed_time" json:"needed_time"`
	Initial      int    `db:"initial" json:"initial"`
	Evacuated    int    `db:"evacuated" json:"evacuated"`
	Dead         int    `db:"dead" json:"dead"`
	Safe         int    `db:"safe" json:"safe"`
	CreatedAt    string `db:"created_at" json:"created_at"`
}

// NewRun builds the stored form of a finished run.
func NewRun(scenario string, cfg engine.Config, res engine.Result) Run {
	return Run{
		Scenario:     scenario,
		RuleSet:      cfg.RuleSet,
		ParameterSet: cfg.ParameterSet,
		Order:        string(cfg.Order),
		Seed:         res.Seed,
		Steps:        res.Steps,
		NeededTime:   res.NeededTime,
		Initial:      res.Initial,
		Evacuated:    res.Evacuated,
		Dead:         res.Dead,
		Safe:         res.Safe,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Individual is the stored outcome of one individual in a run.
type Individual struct {
	RunID            int64   `db:"run_id" json:"run_id"`
	ID               int     `db:"id" json:"id"`
	UID              string  `db:"uid" json:"uid"`
	Status           string  `db:"status" json:"status"`
	DeathCause       string  `db:"death_cause" json:"death_cause"`
	Age              float64 `db:"age" json:"age"`
	Familiarity      float64 `db:"familiarity" json:"familiarity"`
	PanicFactor      float64 `db:"panic_factor" json:"panic_factor"`
	Slackness        float64 `db:"slackness" json:"slackness"`
	ExhaustionFactor float64 `db:"exhaustion_factor" json:"exhaustion_factor"`
	MaxSpeed         float64 `db:"max_speed" json:"max_speed"`
	ReactionTime     float64 `db:"reaction_time" json:"reaction_time"`
	Cell             int     `db:"cell" json:"cell"`
	Potential        string  `db:"potential" json:"potential"`
	Panic            float64 `db:"panic" json:"panic"`
	Exhaustion       float64 `db:"exhaustion" json:"exhaustion"`
	InitialDistance  float64 `db:"initial_distance" json:"initial_distance"`
	MinExitDistance  float64 `db:"min_exit_distance" json:"min_exit_distance"`
	SafetyTime       int     `db:"safety_time" json:"safety_time"`
	EvacuationTime   int     `db:"evacuation_time" json:"evacuation_time"`
	Moves            int     `db:"moves" json:"moves"`
	Waits            int     `db:"waits" json:"waits"`
}

func individualRow(runID int64, o individuals.Outcome) Individual {
	return Individual{
		RunID:            runID,
		ID:               int(o.Individual.ID),
		UID:              o.UID.String(),
		Status:           o.Status.String(),
		DeathCause:       o.DeathCause.String(),
		Age:              o.Age,
		Familiarity:      o.Familiarity,
		PanicFactor:      o.PanicFactor,
		Slackness:        o.Slackness,
		ExhaustionFactor: o.ExhaustionFactor,
		MaxSpeed:         o.MaxSpeed,
		ReactionTime:     o.ReactionTime,
		Cell:             int(o.Cell),
		Potential:        o.Potential,
		Panic:            o.Panic,
		Exhaustion:       o.Exhaustion,
		InitialDistance:  o.InitialDistance,
		MinExitDistance:  o.MinExitDistance,
		SafetyTime:       o.SafetyTime,
		EvacuationTime:   o.EvacuationTime,
		Moves:            o.Moves,
		Waits:            o.Waits,
	}
}

// SaveRun stores a run and its outcomes in one transaction and returns the
// new run ID.
func (db *DB) SaveRun(run Run, outcomes []individuals.Outcome) (int64, error) {
	tx, err := db.conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.NamedExec(`INSERT INTO runs
		(scenario, rule_set, parameter_set, iteration_order, seed, steps, needed_time,
		 initial, evacuated, dead, safe, created_at)
		VALUES (:scenario, :rule_set, :parameter_set, :iteration_order, :seed, :steps, :needed_time,
		 :initial, :evacuated, :dead, :safe, :created_at)`, run)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO individuals
		(run_id, id, uid, status, death_cause, age, familiarity, panic_factor, slackness,
		 exhaustion_factor, max_speed, reaction_time, cell, potential, panic, exhaustion,
		 initial_distance, min_exit_distance, safety_time, evacuation_time, moves, waits)
		VALUES (:run_id, :id, :uid, :status, :death_cause, :age, :familiarity, :panic_factor, :slackness,
		 :exhaustion_factor, :max_speed, :reaction_time, :cell, :potential, :panic, :exhaustion,
		 :initial_distance, :min_exit_distance, :safety_time, :evacuation_time, :moves, :waits)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.Exec(individualRow(runID, o)); err != nil {
			return 0, fmt.Errorf("insert individual %d: %w", o.Individual.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("run saved", "run_id", runID, "individuals", len(outcomes))
	return runID, nil
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY id DESC LIMIT ?", limit)
	return runs, err
}

// Run returns one stored run.
func (db *DB) Run(id int64) (Run, error) {
	var run Run
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id)
	return run, err
}

// Individuals returns the outcomes of a run in ID order.
func (db *DB) Individuals(runID int64) ([]Individual, error) {
	var out []Individual
	err := db.conn.Select(&out, "SELECT * FROM individuals WHERE run_id = ? ORDER BY id", runID)
	return out, err
}

// DeathCauses returns the number of deaths per cause in a run.
func (db *DB) DeathCauses(runID int64) (map[string]int, error) {
	var rows []struct {
		Cause string `db:"death_cause"`
		Count int    `db:"n"`
	}
	err := db.conn.Select(&rows,
		"SELECT death_cause, COUNT(*) AS n FROM individuals WHERE run_id = ? AND status = ? GROUP BY death_cause",
		runID, individuals.StatusDead.String(),
	)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Cause] = r.Count
	}
	return out, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// SaveSimulation stores a terminated simulation as a run.
func (db *DB) SaveSimulation(scenario string, sim *engine.Simulation, res engine.Result) (int64, error) {
	run := NewRun(scenario, sim.Config, res)
	id, err := db.SaveRun(run, sim.Registry().Outcomes())
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	if err := db.SaveMeta("last_run", fmt.Sprintf("%d", id)); err != nil {
		return 0, fmt.Errorf("save meta: %w", err)
	}
	return id, nil
}
