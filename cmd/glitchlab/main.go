// Package main provides the GLITCHLAB CLI: an automated code-change
// orchestrator that plans, implements, tests, secures, and ships a task
// against a target repo as a branch, commit, or PR.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		cancel()
	}()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(ctx, os.Args[2:])
	case "parallel":
		err = parallelCmd(ctx, os.Args[2:])
	case "stats":
		err = statsCmd(os.Args[2:])
	case "audit":
		err = auditCmd(os.Args[2:])
	case "version", "-version", "--version":
		fmt.Printf("glitchlab v%s\n", version)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `GLITCHLAB - automated code-change orchestrator

Usage:
  glitchlab run --repo <path> --task <file> [options]
  glitchlab parallel --repo <path> --tasks <dir> [options]
  glitchlab audit --repo <path> [--kind <kind>] [--dry-run]
  glitchlab stats --repo <path>
  glitchlab version

Run 'glitchlab <command> -h' for command-specific options.
`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs
}
