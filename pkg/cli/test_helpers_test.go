package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/cobra"
)

// captureStdout redirects os.Stdout until the returned function is
// called, which restores it and yields the captured output.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	// Read concurrently to avoid pipe buffer deadlock on large outputs
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	return func() string {
		_ = w.Close()
		<-done
		os.Stdout = old
		return buf.String()
	}
}

// newTestRootCmd creates a fresh root command with HOME isolated so no
// real config file is loaded.
func newTestRootCmd(t *testing.T) *cobra.Command {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return newRootCmd()
}
