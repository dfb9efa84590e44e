package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emsgrid/dispatchd/config"
	"github.com/emsgrid/dispatchd/core/dispatch"
	"github.com/emsgrid/dispatchd/core/dispatch/logging"
	"github.com/emsgrid/dispatchd/infra/logger"
)

var reportHours int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the strategy comparison report from the outcome log",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportHours, "hours", 24, "window size in hours")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Outcomes.Backend != "jsonl" {
		return fmt.Errorf("report requires the jsonl outcome backend")
	}
	store, err := logging.NewJSONLStore(cfg.Outcomes.Path, cfg.Outcomes.ValidationPath)
	if err != nil {
		return fmt.Errorf("outcome store: %w", err)
	}
	defer func() { _ = store.Close() }()

	router, err := dispatch.NewRouter(cfg.Router, store, logger.New("report"))
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	end := time.Now()
	start := end.Add(-time.Duration(reportHours) * time.Hour)
	rep, err := router.Compare(context.Background(), start, end)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
