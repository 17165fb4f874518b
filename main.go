package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagDataDir string
	flagLogFile string
	flagNoAI    bool
	flagOutput  string
)

var rootCmd = &cobra.Command{
	Use:   "tangle [workspace]",
	Short: "A terminal node-link diagram editor",
	Long: `tangle is a terminal editor for node-link diagrams: add nodes, drag
them around, and connect them by dragging between anchors. Edges can be
annotated in the background by an OpenAI-compatible model.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEditor,
}

var exportCmd = &cobra.Command{
	Use:   "export [workspace]",
	Short: "Render a workspace to a PNG without opening the editor",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "override the database directory")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "override the log file path")
	rootCmd.Flags().BoolVar(&flagNoAI, "no-ai", false, "disable edge enrichment")
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output file (default <workspace>.png)")
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfig(args []string) *Config {
	config := loadConfig()
	if flagDataDir != "" {
		config.DataDir = flagDataDir
	}
	if flagLogFile != "" {
		config.LogFile = flagLogFile
	}
	if len(args) > 0 {
		config.Workspace = args[0]
	}
	return config
}

// newLogger writes structured JSON to the configured file. The terminal
// belongs to the TUI, so nothing ever logs to stderr.
func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

func runEditor(cmd *cobra.Command, args []string) error {
	config := resolveConfig(args)

	logger, err := newLogger(config.LogFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logger.Sync()

	store, err := OpenSQLiteStore(config.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	var enricher Enricher
	if config.AI.Enabled && !flagNoAI && config.AI.APIKey != "" {
		enricher = NewOpenAIEnricher(EnricherConfig{
			BaseURL: config.AI.BaseURL,
			APIKey:  config.AI.APIKey,
			Model:   config.AI.Model,
		}, logger)
	}

	logger.Info("starting editor",
		zap.String("workspace", config.Workspace),
		zap.Bool("ai", enricher != nil))

	p := tea.NewProgram(
		newEditor(config, store, enricher, logger, config.Workspace),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = p.Run()
	return err
}

func runExport(cmd *cobra.Command, args []string) error {
	config := resolveConfig(args)

	store, err := OpenSQLiteStore(config.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	nodes, err := store.ListNodes(ctx, config.Workspace)
	if err != nil {
		return err
	}
	edges, err := store.ListEdges(ctx, config.Workspace)
	if err != nil {
		return err
	}

	out := flagOutput
	if out == "" {
		out = config.Workspace + ".png"
	}
	if err := exportPNG(out, nodes, edges); err != nil {
		return err
	}
	fmt.Println("exported", out)
	return nil
}
