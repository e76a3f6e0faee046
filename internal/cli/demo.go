// demo.go implements the "provet demo" command running against a
// scripted in-process backend.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/provet-dev/provet/internal/stub"
	"github.com/provet-dev/provet/internal/tui"
)

var demoCmd = &cobra.Command{
	Use:   "demo [files...]",
	Short: "Run the client against a built-in scripted backend",
	Long: `Start an in-process backend with scripted agents and launch the
interactive client against it. No real analysis service is needed; any
PDF paths given are uploaded to the scripted backend.`,
	RunE: runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	if !tui.IsTTY() {
		return fmt.Errorf("demo requires an interactive terminal")
	}

	srv, err := stub.NewServer()
	if err != nil {
		return err
	}
	srv.Delay = 400 * time.Millisecond
	go func() { _ = srv.Start() }()
	defer func() { _ = srv.Stop() }()

	backendURL = srv.URL()

	// The demo works without real files: missing paths get a placeholder
	// PDF written to a temp directory so the upload has something to send.
	paths, err := demoPaths(args)
	if err != nil {
		return err
	}

	return launchTUI(paths)
}

// demoPaths returns the given paths, or a generated sample document when
// none were provided.
func demoPaths(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	dir, err := os.MkdirTemp("", "provet-demo")
	if err != nil {
		return nil, fmt.Errorf("creating demo directory: %w", err)
	}
	path := dir + "/sample-bid.pdf"
	if err := os.WriteFile(path, []byte("%PDF-1.4 demo procurement bid"), 0644); err != nil {
		return nil, fmt.Errorf("writing sample document: %w", err)
	}
	return []string{path}, nil
}
