// status.go implements the "provet status" command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provet-dev/provet/internal/api"
)

var statusCmd = &cobra.Command{
	Use:   "status <thread-id>",
	Short: "Show backend status for an analysis thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := backendClient()
	if err != nil {
		return err
	}

	status, err := client.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Thread:   %s\n", status.ThreadID)
	fmt.Printf("Status:   %s\n", status.Status)
	fmt.Printf("Verdict:  %s\n", yesNo(status.HasVerdict))
	fmt.Printf("Deck:     %s\n", yesNo(status.HasGamma))
	fmt.Printf("Progress: %d thinking entries\n", status.ThinkingCount)
	return nil
}

// backendClient builds a transport client from config and flags.
func backendClient() (*api.Client, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	cfg, err := loadConfig(workingDir)
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.Backend.URL, cfg.APITimeouts()), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
