// health.go implements the "provet health" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backend availability",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, err := backendClient()
	if err != nil {
		return err
	}

	health, err := client.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}

	fmt.Printf("Status:   %s\n", health.Status)
	if health.LLMProvider != "" {
		fmt.Printf("Provider: %s\n", health.LLMProvider)
	}
	if health.Model != "" {
		fmt.Printf("Model:    %s\n", health.Model)
	}
	return nil
}
