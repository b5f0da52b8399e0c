// Package main provides the tracegrad CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

const version = "v0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 0
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "tracegrad %s\n", version)
		return 0
	case "train":
		cfg, err := parseTrainFlags("train", args[1:], stderr)
		if err != nil {
			fmt.Fprintf(stderr, "train: %v\n", err)
			return 2
		}
		logger := newLogger(stderr, cfg.Verbose)
		res, err := train(cfg, logger)
		if err != nil {
			logger.Error("training failed", "err", err)
			return 1
		}
		fmt.Fprintf(stdout, "task=%s steps=%d loss %.6f -> %.6f", cfg.Task, cfg.Steps, res.InitialLoss, res.FinalLoss)
		if cfg.Task == taskClassify {
			fmt.Fprintf(stdout, " accuracy=%.3f", res.Accuracy)
		}
		fmt.Fprintln(stdout)
		return 0
	case "graph":
		cfg, err := parseTrainFlags("graph", args[1:], stderr)
		if err != nil {
			fmt.Fprintf(stderr, "graph: %v\n", err)
			return 2
		}
		dot, err := traceGraph(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "graph: %v\n", err)
			return 1
		}
		fmt.Fprint(stdout, dot)
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "tracegrad - reverse-mode autodiff for Go")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  train      Fit a two-layer MLP to a synthetic task (see train -h)")
	fmt.Fprintln(w, "  graph      Trace one training step and print it as Graphviz DOT")
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
