// history.go implements the "provet history" command listing past analyses.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provet-dev/provet/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past analyses from the local store",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	workingDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := loadConfig(workingDir)
	if err != nil {
		return err
	}

	path := cfg.HistoryPath(workingDir)
	if path == "" {
		return fmt.Errorf("history is disabled in .provet/config.yaml")
	}

	store, err := history.NewStore(path)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No analyses recorded yet.")
		return nil
	}

	for _, rec := range records {
		deck := ""
		if rec.GammaLink != "" {
			deck = "  " + rec.GammaLink
		}
		fmt.Printf("%s  %-4s  %3.0f%%  %s%s\n",
			rec.UpdatedAt.Format("2006-01-02 15:04"),
			rec.Status,
			rec.Confidence,
			rec.Title,
			deck,
		)
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of analyses to list")
}
