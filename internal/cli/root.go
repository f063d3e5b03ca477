// Package cli implements the response-guard CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/response-guard/internal/config"
	"github.com/rcliao/response-guard/internal/detector"
	"github.com/rcliao/response-guard/internal/intervene"
	"github.com/rcliao/response-guard/internal/logging"
	"github.com/rcliao/response-guard/internal/pipeline"
	"github.com/rcliao/response-guard/internal/similarity"
	"github.com/rcliao/response-guard/internal/store"
	"github.com/rcliao/response-guard/internal/verify"
)

var (
	dbPath     string
	configPath string

	cfg    *config.Config
	logger = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "response-guard",
	Short: "Safety pipeline for supportive chat responses",
	Long: "Vets candidate chat responses before delivery: detects repetition, fabricated memories " +
		"and crisis language, rewrites or replaces unsafe responses, and keeps per-session memory in SQLite.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: store.db_path or ~/.response-guard/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.response-guard/config.yaml if present)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (default: log.level)")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.Log.Level = lvl
	}
	l, err := logging.New(c.Log.Level, c.Log.Development)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.Store.DBPath
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

// newPipeline wires a pipeline from the loaded configuration. ps may be nil.
func newPipeline(ps pipeline.Persister, metrics *pipeline.Metrics) *pipeline.Pipeline {
	analyzer := similarity.New(cfg.SimilarityOptions())
	handler := intervene.New(
		intervene.WithAnalyzer(analyzer),
		intervene.WithGuidance(cfg.Intervention.AppendGuidance),
	)

	opts := []pipeline.Option{
		pipeline.WithDetector(newDetector(analyzer)),
		pipeline.WithHandler(handler),
		pipeline.WithBoundary(cfg.BoundaryDetector()),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
	}
	if ps != nil && cfg.Store.SaveEveryTurn {
		opts = append(opts, pipeline.WithPersister(ps))
	}
	return pipeline.New(opts...)
}

func newDetector(analyzer *similarity.Analyzer) *detector.Detector {
	return detector.New(
		detector.WithAnalyzer(analyzer),
		detector.WithVerifier(verify.New(cfg.VerifierOptions())),
		detector.WithPolicy(cfg.DetectorPolicy()),
		detector.WithLogger(logger),
	)
}

func printJSON(cmd *cobra.Command, v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
