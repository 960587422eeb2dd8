// Command bl-assemble drives the repository assembly engine from a
// declarative project spec: cloning, resetting, merging and publishing
// every slot's working tree, or, in freeze mode, pinning every slot's
// references to the commits currently checked out.
//
// Usage:
//
//	bl-assemble -c spec.yaml -w /srv/checkout -j 28
//	bl-assemble -c spec.yaml -f=frozen.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/franzpoize/bl/assembly"
	"github.com/franzpoize/bl/progress"
	"github.com/franzpoize/bl/specfile"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	gitExecutablePath = exec.Command("git").String()
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

func usage() {
	fmt.Fprintf(os.Stderr, "NAME:\n")
	fmt.Fprintf(os.Stderr, "\tbl-assemble - assembles a working tree from a declarative multi-repo spec.\n")
	fmt.Fprintf(os.Stderr, "\nUsage:\n")
	fmt.Fprintf(os.Stderr, "\tbl-assemble [options]\n")
	fmt.Fprintf(os.Stderr, "\nOPTIONS:\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		flagConfig      string
		flagFrozen      string
		flagWorkdir     string
		flagConcurrency int
		flagFreeze      string
		flagFreezeSet   bool
		flagLogLevel    string
		flagHTTPBind    string
	)

	flag.StringVarP(&flagConfig, "config", "c", "./spec.yaml", "input spec path")
	flag.StringVarP(&flagFrozen, "frozen", "z", "", "pinned-reference document (default 'frozen.yaml' alongside the spec file)")
	flag.StringVarP(&flagWorkdir, "workdir", "w", "", "working directory (default: the spec file's directory)")
	flag.IntVarP(&flagConcurrency, "concurrency", "j", 28, "semaphore capacity")
	flag.StringVarP(&flagLogLevel, "log-level", "l", "info", "log level")
	flag.StringVarP(&flagHTTPBind, "http-bind", "b", ":9091", "bind address for the metrics/debug HTTP server")
	flag.CommandLine.StringVarP(&flagFreeze, "freeze", "f", "", "switch to freeze mode; optional path overrides the default output")
	// freeze's path argument is optional ("-f/--freeze [path]" in the CLI
	// contract): bare "-f" with no "=value" still flips freeze mode on.
	flag.Lookup("freeze").NoOptDefVal = " "
	flag.Usage = usage
	flag.Parse()
	flagFreezeSet = flag.CommandLine.Changed("freeze")
	if strings.TrimSpace(flagFreeze) == "" {
		flagFreeze = ""
	}

	if v, ok := levelStrings[strings.ToLower(flagLogLevel)]; ok {
		loggerLevel.Set(v)
	}

	assembly.EnableMetrics("bl", prometheus.NewRegistry())
	startMetricsServer(flagHTTPBind)

	specPath, err := resolveSpecPath(flagConfig)
	if err != nil {
		logger.Error("unable to locate spec file", "err", err)
		os.Exit(1)
	}

	workDir := flagWorkdir
	if workDir == "" {
		abs, err := filepath.Abs(filepath.Dir(specPath))
		if err != nil {
			logger.Error("unable to resolve workdir", "err", err)
			os.Exit(1)
		}
		workDir = abs
	}

	frozenPath := flagFrozen
	if frozenPath == "" {
		frozenPath = filepath.Join(filepath.Dir(specPath), "frozen.yaml")
	}

	project, err := specfile.Load(specPath, frozenPath, workDir, logger)
	if err != nil {
		logger.Error("unable to load spec", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("interrupt received, cancelling in-flight subprocesses...")
		cancel()
	}()

	if flagFreezeSet {
		outPath := flagFreeze
		if outPath == "" {
			outPath = frozenPath
		}
		os.Exit(runFreeze(ctx, project, flagConcurrency, outPath))
	}

	os.Exit(runAssemble(ctx, project, flagConcurrency))
}

func runAssemble(ctx context.Context, project *specfile.Project, concurrency int) int {
	sched := &assembly.Scheduler{
		Project:     project,
		Concurrency: concurrency,
		GitExec:     gitExecutablePath,
		Sink:        progress.NewTerminal(os.Stderr),
		Log:         logger,
	}

	result, err := sched.Run(ctx)
	if err != nil {
		logger.Error("scheduler failed", "err", err)
		return 1
	}

	for _, r := range result.Slots {
		if r.Err != nil {
			logger.Error("slot failed", "slot", r.Slot, "err", r.Err)
		}
	}

	if !result.OK() {
		logger.Error("assembly finished with failures", "failed", result.Failed())
		return 1
	}

	logger.Info("assembly finished successfully", "slots", len(result.Slots))
	return 0
}

func runFreeze(ctx context.Context, project *specfile.Project, concurrency int, outPath string) int {
	fm, err := assembly.Freeze(ctx, project, concurrency, gitExecutablePath, logger)
	if err != nil {
		logger.Error("freeze failed", "err", err)
		return 1
	}

	if err := specfile.WriteFrozen(outPath, fm); err != nil {
		logger.Error("unable to write frozen document", "err", err)
		return 1
	}

	logger.Info("froze project", "path", outPath, "slots", len(fm))
	return 0
}

// startMetricsServer serves /metrics and the pprof debug routes in the
// background for the lifetime of the process.
func startMetricsServer(bind string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       5 * time.Second,
		ReadHeaderTimeout: 1 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", "addr", bind)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server terminated", "err", err)
		}
	}()
}

// resolveSpecPath implements the fallback described in the CLI contract:
// a relative path that doesn't exist is retried under
// <config-dir>/odoo/<basename>.
func resolveSpecPath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if filepath.IsAbs(path) {
		return "", err
	}

	fallback := filepath.Join(filepath.Dir(path), "odoo", filepath.Base(path))
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}

	return "", fmt.Errorf("spec file not found at %q or %q", path, fallback)
}
