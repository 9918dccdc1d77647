// Package main provides the storage migration tool: it converts legacy text
// record files to the binary format under their hashed names.
//
// Usage:
//
//	migrate <file.json | directory>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/observability"
	"github.com/cory-johannsen/growbot/internal/storage/file"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the tool and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	start := time.Now()

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	level := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: migrate [-log-level level] <file.json | directory>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "error: expected exactly one input path")
		fs.Usage()
		return 1
	}
	input := fs.Arg(0)

	logger, err := observability.NewCLILogger(*level)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	info, err := os.Stat(input)
	if err == nil && info.IsDir() {
		results, err := file.MigrateDir(input, logger)
		for _, r := range results {
			fmt.Fprintf(stdout, "%s -> %s (%d entries)\n", r.Input, r.Output, r.Entries)
		}
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		logger.Info("migration complete",
			zap.Int("files", len(results)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return 0
	}

	r, err := file.Migrate(input, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s -> %s (%d entries)\n", r.Input, r.Output, r.Entries)
	logger.Info("migration complete", zap.Duration("elapsed", time.Since(start)))
	return 0
}
