package indexer

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestRunnerRecordsOutcome(t *testing.T) {
	ix, _ := newTestIndexer(t, &fakeFetcher{}, "")

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	// A root that does not exist makes the run fail immediately.
	root := filepath.Join(t.TempDir(), "missing")
	runner := NewRunner(context.Background(), ix, root, logger)

	if !runner.Trigger() {
		t.Fatal("Expected trigger to start a run")
	}

	deadline := time.After(5 * time.Second)
	for {
		running, _, lastErr := runner.Status()
		if !running {
			if lastErr == nil {
				t.Error("Expected run against missing root to fail")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("Run did not finish in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !runner.Trigger() {
		t.Error("Expected a new trigger after the previous run finished")
	}
}
