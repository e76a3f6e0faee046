// analyze.go implements the non-interactive "provet analyze" command.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/provet-dev/provet/internal/session"
	"github.com/provet-dev/provet/internal/tui/commands"
	"github.com/provet-dev/provet/internal/ui"
)

var analyzeDeck bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <files...>",
	Short: "Analyze documents and print the verdict",
	Long: `Upload the given PDF documents, stream the agent progress to
stdout, and print the verdict. Intended for scripts and non-TTY use;
run provet without arguments for the interactive client.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	workingDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := loadConfig(workingDir)
	if err != nil {
		return err
	}

	machine, cleanup, err := buildMachine(cfg, workingDir)
	if err != nil {
		return err
	}
	defer cleanup()

	files, err := commands.ReadDocuments(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := machine.UploadDocuments(ctx, files); err != nil {
		return err
	}

	snap, err := waitForVerdict(ctx, machine)
	if err != nil {
		return err
	}

	printVerdict(snap)

	if analyzeDeck {
		if err := machine.GenerateArtifact(ctx); err != nil {
			return fmt.Errorf("generating deck: %w", err)
		}
		fmt.Printf("\nDeck: %s\n", machine.Snapshot().ArtifactLink)
	} else if err := machine.DeclineArtifact(ctx); err != nil {
		return fmt.Errorf("closing review: %w", err)
	}

	return nil
}

// waitForVerdict feeds progress entries to the live display and returns
// the snapshot once the verdict is in.
func waitForVerdict(ctx context.Context, machine *session.Machine) (session.Snapshot, error) {
	display := ui.NewProgressDisplay(machine.Snapshot().Documents)
	observed := 0
	for {
		snap := machine.Snapshot()
		for _, entry := range snap.ProgressLog[observed:] {
			display.Observe(entry.Agent, entry.Message)
		}
		observed = len(snap.ProgressLog)

		switch {
		case snap.Verdict != nil:
			display.Finish()
			return snap, nil
		case snap.LastError != "":
			display.Fail()
			return snap, fmt.Errorf("analysis failed: %s", snap.LastError)
		}

		select {
		case <-ctx.Done():
			machine.Reset()
			return snap, ctx.Err()
		case <-machine.Updates():
		case <-time.After(time.Second):
			// Re-poll; updates coalesce and may have been consumed.
		}
	}
}

func printVerdict(snap session.Snapshot) {
	v := snap.Verdict
	fmt.Printf("\n%s  %s (confidence %.0f%%)\n", v.Status, v.Title, v.Confidence)
	for _, f := range v.Findings {
		fmt.Printf("  [%s] %s\n", f.Severity, f.Category)
		for _, item := range f.Items {
			fmt.Printf("    - %s\n", item)
		}
	}
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeDeck, "deck", false, "Generate a presentation deck after the verdict")
}
