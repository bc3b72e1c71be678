package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/fixheap/internal/config"
	"github.com/joshuapare/fixheap/internal/format"
	"github.com/joshuapare/fixheap/internal/logging"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Settings resolved before every command; tests that call run* directly
	// get the defaults.
	cfg    *config.Config
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Create, inspect and exercise fixed-capacity heap images",
	Long: `heapctl manages heap images: files holding a fixed-capacity heap whose
blocks are described by 4-byte headers. It can create images, allocate and
free blocks in them, dump and verify their block chains, replay allocation
traces, stress the allocator concurrently and take compressed snapshots.

Settings are read from FIXHEAP_* environment variables and the optional YAML
file named by FIXHEAP_CONFIG_FILE; flags override both.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	c := config.Default()
	cfg = &c

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

// setup loads configuration and builds the logger.
func setup() error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	l, err := logging.New(os.Stderr, c, verbose, quiet)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	slog.SetDefault(l)
	return nil
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// parseSize parses a byte count such as "4096", "64KiB" or "1MB". An empty
// string yields def.
func parseSize(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > format.MaxPayloadSize {
		return 0, fmt.Errorf("size %s exceeds %s", humanize.IBytes(n), humanize.IBytes(format.MaxPayloadSize))
	}
	return int(n), nil
}
