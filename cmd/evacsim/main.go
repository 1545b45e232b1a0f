// Command evacsim runs an evacuation scenario to completion and reports who
// got out. With -serve it paces the run and exposes live progress over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/evacuation-ca/internal/api"
	"github.com/talgya/evacuation-ca/internal/engine"
	"github.com/talgya/evacuation-ca/internal/params"
	"github.com/talgya/evacuation-ca/internal/persistence"
	"github.com/talgya/evacuation-ca/internal/rules"
	"github.com/talgya/evacuation-ca/internal/scenario"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "scenario YAML file")
		generate     = flag.Bool("generate", false, "generate a floor plan instead of loading one")
		rooms        = flag.Int("rooms", 3, "rooms in a generated plan")
		dump         = flag.String("dump", "", "write the scenario as YAML to this file and exit")
		seed         = flag.Int64("seed", 0, "random seed override (0 keeps the scenario's)")
		ruleSet      = flag.String("rules", "", "rule set override")
		paramSet     = flag.String("params", "", "parameter set override")
		order        = flag.String("order", "", "iteration order override (default, front-to-back, back-to-front)")
		maxSteps     = flag.Int("steps", -1, "step limit override")
		dbPath       = flag.String("db", "", "SQLite file to record the run in")
		port         = flag.Int("serve", 0, "serve the HTTP API on this port")
		interval     = flag.Duration("interval", 100*time.Millisecond, "wall time per step when serving")
		debug        = flag.Bool("debug", false, "log every step")
		list         = flag.Bool("list", false, "list rule and parameter sets and exit")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if *list {
		fmt.Println("rule sets:     ", strings.Join(rules.Names(), ", "))
		fmt.Println("parameter sets:", strings.Join(params.Names(), ", "))
		return
	}

	// ── Scenario ──────────────────────────────────────────────────────
	var file *scenario.File
	var err error
	switch {
	case *generate:
		cfg := scenario.DefaultGenConfig()
		cfg.Rooms = *rooms
		cfg.Seed = *seed
		file, err = scenario.Generate(cfg)
	case *scenarioPath != "":
		file, err = scenario.Load(*scenarioPath)
	default:
		err = errors.New("need -scenario or -generate")
	}
	if err != nil {
		slog.Error("no scenario", "error", err)
		os.Exit(2)
	}

	if *seed != 0 {
		file.Config.Seed = *seed
	}
	if *ruleSet != "" {
		file.Config.RuleSet = *ruleSet
	}
	if *paramSet != "" {
		file.Config.ParameterSet = *paramSet
	}
	if *order != "" {
		file.Config.Order = engine.Order(*order)
	}
	if *maxSteps >= 0 {
		file.Config.MaxSteps = *maxSteps
	}

	if *dump != "" {
		data, err := file.Marshal()
		if err == nil {
			err = os.WriteFile(*dump, data, 0o644)
		}
		if err != nil {
			slog.Error("dump failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Scenario %q written to %s\n", file.Name, *dump)
		return
	}

	sc, err := file.Build()
	if err != nil {
		slog.Error("scenario build failed", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if *dbPath != "" {
		db, err = persistence.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", *dbPath)
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.New(sc.Problem, sc.Config)
	if err != nil {
		slog.Error("simulation setup failed", "error", err)
		os.Exit(1)
	}
	sim.Progress = func(fraction float64, message string) {
		slog.Debug("progress", "fraction", fmt.Sprintf("%.3f", fraction), "message", message)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.NewEngine()
	var server *api.Server
	if *port > 0 {
		eng = engine.NewPacedEngine(*interval)
		server = api.NewServer(eng, db, *port, os.Getenv("EVACSIM_ADMIN_KEY"))
		server.Scenario = sc.Name
		eng.OnStep = server.Publish
		server.Publish(sim)
		server.Start()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", *port)
	}

	start := time.Now()
	res, err := eng.Run(ctx, sim)
	if err != nil {
		slog.Error("simulation aborted", "step", sim.CurrentStep(), "error", err)
		os.Exit(1)
	}
	if server != nil {
		server.Publish(sim)
	}

	printSummary(sc.Name, res, sim.Params.SecondsPerStep(), time.Since(start))

	if db != nil {
		id, err := db.SaveSimulation(sc.Name, sim, res)
		if err != nil {
			slog.Error("saving run failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Run recorded as #%d in %s\n", id, *dbPath)
	}

	if server != nil {
		fmt.Println("Run finished; API stays up until Ctrl+C.")
		<-ctx.Done()
	}
}

func printSummary(name string, res engine.Result, secondsPerStep float64, wall time.Duration) {
	fmt.Printf("\n%s: %s steps (%s s simulated, %s wall)\n",
		name,
		humanize.Comma(int64(res.Steps)),
		humanize.FtoaWithDigits(float64(res.NeededTime)*secondsPerStep, 1),
		wall.Round(time.Millisecond),
	)
	fmt.Printf("  evacuated %s of %s, safe %s, dead %s\n",
		humanize.Comma(int64(res.Evacuated)),
		humanize.Comma(int64(res.Initial)),
		humanize.Comma(int64(res.Safe)),
		humanize.Comma(int64(res.Dead)),
	)
	causes := make([]string, 0, len(res.DeathCauses))
	for cause := range res.DeathCauses {
		causes = append(causes, cause)
	}
	sort.Strings(causes)
	for _, cause := range causes {
		fmt.Printf("    %-18s %s\n", cause, humanize.Comma(int64(res.DeathCauses[cause])))
	}
}
