// Command faaf is the external CLI entry point: it validates the four
// required paths, wires the configured analyzers to a subprocess
// dispatcher, and runs one orchestration pass over a firmware tree.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cruxfw/faaf/config"
	"github.com/cruxfw/faaf/dispatch"
	"github.com/cruxfw/faaf/orchestrate"
	"github.com/cruxfw/faaf/store"
)

var (
	firmwareRoot string
	scriptDir    string
	configPath   string
	dbPath       string
)

var rootCmd = &cobra.Command{
	Use:   "faaf",
	Short: "Walk a firmware tree and run configured analyzers over it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&firmwareRoot, "firmware-root", "", "firmware tree to analyze (required)")
	rootCmd.Flags().StringVar(&scriptDir, "script-dir", "", "directory of analyzer scripts (required)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "analyzer configuration file (required)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "output SQLite database file (required)")

	for _, name := range []string{"firmware-root", "script-dir", "config", "db"} {
		_ = rootCmd.MarkFlagRequired(name)
	}
}

func run(ctx context.Context) error {
	root, err := filepath.Abs(firmwareRoot)
	if err != nil {
		return fmt.Errorf("canonicalize firmware root: %w", err)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("canonicalize firmware root: %w", err)
	}
	if err := mustBeDir(root, "firmware root"); err != nil {
		return err
	}
	if err := mustBeDir(scriptDir, "script directory"); err != nil {
		return err
	}
	if err := mustBeFile(configPath, "configuration file"); err != nil {
		return err
	}
	if err := mustBeAbsentOrFile(dbPath, "database file"); err != nil {
		return err
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	if err := s.CreateSchema(cfg); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	registry := dispatch.NewRegistry()
	scripts := &dispatch.ScriptDispatcher{ScriptDir: scriptDir}
	for _, a := range cfg.Analyzers {
		registry.Register(a.Extension, scripts)
	}

	return orchestrate.Run(ctx, orchestrate.Options{
		FirmwareRoot: root,
		Config:       cfg,
		Store:        s,
		Dispatcher:   registry,
	})
}

func mustBeDir(path, label string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %q is not a directory", label, path)
	}
	return nil
}

func mustBeFile(path, label string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %q is not a regular file", label, path)
	}
	return nil
}

func mustBeAbsentOrFile(path, label string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %q exists and is not a regular file", label, path)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "faaf: %v\n", err)
		os.Exit(1)
	}
}
