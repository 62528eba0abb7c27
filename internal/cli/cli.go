// Package cli wires the coordinator up as a standalone binary: a Cobra
// root command with a persistent --config flag and a single compile
// subcommand that serves both operations (Files, or FilesToPath when
// --dest is given).
//
// The CLI ships its own backend: internal/demo, driven by a batch
// manifest file the caller supplies. A real compiler back-end is an
// external collaborator this repo does not provide — the demo backend
// exists so the binary is runnable end to end without one.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"net/http"

	"github.com/vantalang/coordinator/internal/config"
	"github.com/vantalang/coordinator/internal/demo"
	"github.com/vantalang/coordinator/internal/metrics"
	"github.com/vantalang/coordinator/pkg/coordinator"
	"github.com/vantalang/coordinator/pkg/types"
)

var configFile string

// BuildCLI assembles the root command and its subcommands.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "vantac",
		Short:   "vantac: a deadlock-aware parallel compilation coordinator",
		Long:    "vantac compiles a batch of files in parallel, resolving inter-file symbol dependencies as it goes and diagnosing any cycle as a deadlock rather than hanging.",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional; flags and defaults apply if omitted)")

	rootCmd.AddCommand(buildCompileCommand())
	return rootCmd
}

// manifestEntry is one file's row in a --batch JSON manifest: what it
// declares and references, grounded on the same shape internal/demo's
// FileSpec exposes, minus the fields (Err, Panic) that only make sense
// from code, not from a file a user hand-writes.
type manifestEntry struct {
	Path       string        `json:"path"`
	Declares   []symbolEntry `json:"declares"`
	References []symbolEntry `json:"references"`
	DelayMs    int64         `json:"delay_ms"`
}

type symbolEntry struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"` // "module" or "struct"
}

func (s symbolEntry) kind() types.SymbolKind {
	if s.Kind == "struct" {
		return types.SymbolStruct
	}
	return types.SymbolModule
}

func loadManifest(path string) ([]types.File, map[string]demo.FileSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read batch manifest: %w", err)
	}

	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("parse batch manifest: %w", err)
	}

	files := make([]types.File, 0, len(entries))
	specs := make(map[string]demo.FileSpec, len(entries))
	for _, e := range entries {
		file := types.NewFile(e.Path)
		files = append(files, file)

		spec := demo.FileSpec{Delay: time.Duration(e.DelayMs) * time.Millisecond}
		for _, d := range e.Declares {
			spec.Declares = append(spec.Declares, demo.Declaration{Symbol: d.Symbol, Kind: d.kind()})
		}
		for _, r := range e.References {
			spec.References = append(spec.References, demo.Reference{Symbol: r.Symbol, Kind: r.kind()})
		}
		specs[e.Path] = spec
	}
	return files, specs, nil
}

func buildCompileCommand() *cobra.Command {
	var batchFile string
	var dest string
	var concurrency int
	var warningsAsErrors bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a batch of files described by a manifest",
		Long:  "Read a --batch JSON manifest describing each file's declared and referenced symbols, then compile the whole batch in parallel.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(batchFile, dest, concurrency, warningsAsErrors)
		},
	}

	cmd.Flags().StringVarP(&batchFile, "batch", "b", "", "JSON file describing the batch (required)")
	cmd.Flags().StringVar(&dest, "dest", "", "directory to write compiled module artifacts into (optional)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "override the concurrency cap (0 = default)")
	cmd.Flags().BoolVar(&warningsAsErrors, "warnings-as-errors", false, "fail the batch if any warnings were reported")
	cmd.MarkFlagRequired("batch")

	return cmd
}

func runCompile(batchFile, dest string, concurrency int, warningsAsErrors bool) error {
	files, specs, err := loadManifest(batchFile)
	if err != nil {
		return err
	}

	opts := coordinator.Options{
		Concurrency:      concurrency,
		WarningsAsErrors: warningsAsErrors,
	}

	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Concurrency > 0 {
			opts.Concurrency = cfg.Concurrency
		}
		if cfg.LongCompilationThresholdMs > 0 {
			opts.LongCompilationThreshold = time.Duration(cfg.LongCompilationThresholdMs) * time.Millisecond
		}
		if cfg.WarningsAsErrors {
			opts.WarningsAsErrors = true
		}
		if cfg.Metrics.Enabled {
			collector := metrics.NewCollector()
			opts.Metrics = collector
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
				slog.Info("metrics server listening", "addr", addr)
				if err := http.ListenAndServe(addr, nil); err != nil {
					slog.Error("metrics server exited", "error", err)
				}
			}()
		}
	}

	opts.OnFileDone = func(f types.File) {
		slog.Info("compiled", "file", f.Path)
	}
	opts.OnLongCompilation = func(f types.File) {
		slog.Warn("long compilation", "file", f.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("received interrupt, cancelling batch")
		cancel()
	}()

	be := demo.New(specs, 0, 0)

	var modules []types.Symbol
	if dest != "" {
		modules, err = coordinator.FilesToPath(ctx, files, dest, be, opts)
	} else {
		modules, err = coordinator.Files(ctx, files, be, dest, opts)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	fmt.Printf("compiled %d file(s), %d module(s) produced\n", len(files), len(modules))
	for _, m := range modules {
		fmt.Printf("  %s\n", m.String())
	}
	return nil
}
