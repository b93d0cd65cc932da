// Command tandem runs the sample jobs on a worker pool and reports wall time
// against the summed time of the tasks.
//
// Usage:
//
//	tandem [flags] [job...]
//
// Without job arguments every registered job runs. In parallelize mode each
// job runs its reference strategy and the outputs are printed in argument
// order; in race mode the strategies of each job race each other.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/alitto/tandem"
	"github.com/alitto/tandem/internal/config"
	"github.com/alitto/tandem/internal/jobs"
	"github.com/alitto/tandem/internal/report"
)

const (
	modeParallelize = "parallelize"
	modeRace        = "race"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	configPath string
	mode       string
	repeat     int
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tandem", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f flags
	fs.StringVar(&f.configPath, "config", "", "path to a TOML config file")
	fs.StringVar(&f.mode, "mode", modeParallelize, "how to combine jobs: parallelize or race")
	fs.IntVar(&f.repeat, "repeat", 1, "number of times each job is submitted (parallelize mode)")

	// Overrides for config values; only applied when set explicitly
	workers := fs.Int("workers", 0, "number of workers")
	raceReserve := fs.Int("race-reserve", 0, "workers left free by race admission control")
	backend := fs.String("backend", "", "executor backend: fixed, ants or workerpool")
	warmUpTasks := fs.Int("warm-up-tasks", 0, "trivial tasks raced at startup")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")
	metricsAddr := fs.String("metrics-addr", "", "address to expose Prometheus metrics on while running")
	inputDir := fs.String("input-dir", "", "directory holding one input file per job")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "workers":
			cfg.Workers = *workers
		case "race-reserve":
			cfg.RaceReserve = *raceReserve
		case "backend":
			cfg.Backend = *backend
		case "warm-up-tasks":
			cfg.WarmUpTasks = *warmUpTasks
		case "log-level":
			cfg.LogLevel = *logLevel
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "input-dir":
			cfg.InputDir = *inputDir
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if f.mode != modeParallelize && f.mode != modeRace {
		fmt.Fprintf(stderr, "unknown mode %q\n", f.mode)
		return exitUsage
	}
	if f.repeat < 1 {
		fmt.Fprintf(stderr, "repeat must be at least 1, got %d\n", f.repeat)
		return exitUsage
	}

	selected, err := selectJobs(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger := log.NewWithOptions(stderr, log.Options{
		Prefix:          "tandem",
		Level:           cfg.Level(),
		ReportTimestamp: true,
	})

	if err := execute(cfg, f, selected, logger, stdout); err != nil {
		logger.Error("run failed", "err", err)
		return exitError
	}

	return exitOK
}

func selectJobs(names []string) ([]jobs.Job, error) {
	if len(names) == 0 {
		names = jobs.Names()
	}

	selected := make([]jobs.Job, 0, len(names))
	for _, name := range names {
		job, ok := jobs.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown job %q (available: %v)", name, jobs.Names())
		}
		selected = append(selected, job)
	}
	return selected, nil
}

func execute(cfg config.Config, f flags, selected []jobs.Job, logger *log.Logger, stdout io.Writer) error {
	rt := tandem.New(
		tandem.WithSize(cfg.Workers),
		tandem.WithRaceReserve(cfg.RaceReserve),
		tandem.WithBackend(cfg.Backend),
		tandem.WithWarmUpTasks(cfg.WarmUpTasks),
		tandem.WithLogger(logger),
	)
	defer rt.StopAndWait()

	rt.WarmUp()

	inputs := make([]string, len(selected))
	for i, job := range selected {
		input, err := jobs.LoadInput(cfg.InputDir, job)
		if err != nil {
			return err
		}
		inputs[i] = input
	}

	g, ctx := errgroup.WithContext(context.Background())

	var server *http.Server
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := rt.RegisterMetrics(reg); err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving metrics: %w", err)
			}
			return nil
		})
	}

	summary := report.New(f.mode, rt.Size())

	g.Go(func() error {
		if server != nil {
			defer server.Shutdown(context.Background())
		}

		baseline := rt.WorkBin()
		start := time.Now()

		switch f.mode {
		case modeRace:
			summary.Outputs = raceJobs(rt, selected, inputs)
		default:
			summary.Outputs = parallelizeJobs(rt, selected, inputs, f.repeat)
		}

		summary.Wall = time.Since(start)
		summary.Tasks = len(summary.Outputs)

		// Losing race candidates may still be running
		rt.StopAndWait()
		summary.Work = rt.WorkBin() - baseline

		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Debug("run finished", "run", summary.RunID, "submitted", rt.SubmittedTasks(), "failed", rt.FailedTasks())

	_, err := summary.WriteTo(stdout)
	return err
}

func parallelizeJobs(rt *tandem.Runtime, selected []jobs.Job, inputs []string, repeat int) []string {
	tasks := make([]tandem.Task[string], 0, len(selected)*repeat)
	for i, job := range selected {
		for range repeat {
			tasks = append(tasks, job.Task(rt.Bins(), inputs[i]))
		}
	}
	return tandem.Parallelize(rt, tasks)
}

func raceJobs(rt *tandem.Runtime, selected []jobs.Job, inputs []string) []string {
	outputs := make([]string, len(selected))
	for i, job := range selected {
		outputs[i] = tandem.Race(rt, job.Alternatives(rt.Bins(), inputs[i]))
	}
	return outputs
}
