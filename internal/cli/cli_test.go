package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/hireflow/internal/config"
	"github.com/me/hireflow/internal/dispatch"
	"github.com/me/hireflow/internal/logging"
	"github.com/me/hireflow/internal/mail"
	"github.com/me/hireflow/internal/scheduler"
	"github.com/me/hireflow/internal/server"
	"github.com/me/hireflow/internal/store"
)

// startTestServer starts a server with an in-memory SQLite store and returns the URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := logging.Discard()
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultServerConfig()
	d := dispatch.New(st, mail.NewLogMailer(srvLogger), dispatch.NewTemplater(),
		dispatch.Config{SlotDays: cfg.SlotDays, SlotsPerDay: cfg.SlotsPerDay, Concurrency: cfg.DispatchConcurrency}, srvLogger)
	orch := scheduler.New(st, d, scheduler.Config{Threshold: cfg.Threshold, TopN: cfg.TopN}, srvLogger)
	ts := httptest.NewServer(server.New(cfg, st, orch, srvLogger).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := root.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\noutput: %s", args, err, out)
	}
	return out
}

func TestJobCreateCommand(t *testing.T) {
	url := startTestServer(t)

	output := mustRun(t, "--server", url, "job", "create", "--id", "job_cli", "--title", "Data Engineer", "--enrolled", "5")
	if !strings.Contains(output, "Job created: job_cli") {
		t.Errorf("expected 'Job created: job_cli' in output, got: %s", output)
	}
	if !strings.Contains(output, "Threshold: 3") {
		t.Errorf("expected default threshold in output, got: %s", output)
	}

	output = mustRun(t, "--server", url, "job", "list")
	if !strings.Contains(output, "job_cli") || !strings.Contains(output, "Data Engineer") {
		t.Errorf("expected job in list output, got: %s", output)
	}
}

func TestJobCreateCommand_MissingFlags(t *testing.T) {
	url := startTestServer(t)
	if _, err := runCLI(t, "--server", url, "job", "create", "--title", "x"); err == nil {
		t.Fatal("expected error when --enrolled is missing")
	}
}

func TestSubmitCommand_SmallPool(t *testing.T) {
	url := startTestServer(t)
	mustRun(t, "--server", url, "job", "create", "--id", "job_s", "--title", "QA", "--enrolled", "2")

	output := mustRun(t, "--server", url, "submit", "job_s", "--candidate", "alice", "--email", "alice@example.com", "--score", "81")
	for _, want := range []string{"Outcome: SENT", "FIRE_IMMEDIATE", "1/2 completed", "alice"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestSubmitCommand_WaitAndBatch(t *testing.T) {
	url := startTestServer(t)
	mustRun(t, "--server", url, "job", "create", "--id", "job_b", "--title", "SRE", "--enrolled", "4", "--top-n", "2")

	output := mustRun(t, "--server", url, "submit", "job_b", "--candidate", "c1", "--email", "c1@example.com", "--score", "50")
	if !strings.Contains(output, "Outcome: WAITING") {
		t.Errorf("expected WAITING, got: %s", output)
	}
	mustRun(t, "--server", url, "submit", "job_b", "--candidate", "c2", "--email", "c2@example.com", "--score", "90")
	mustRun(t, "--server", url, "submit", "job_b", "--candidate", "c3", "--email", "c3@example.com", "--score", "70")
	output = mustRun(t, "--server", url, "submit", "job_b", "--candidate", "c4", "--email", "c4@example.com", "--score", "60")
	if !strings.Contains(output, "FIRE_BATCH") || !strings.Contains(output, "invited c2, c3") {
		t.Errorf("expected batch of c2, c3, got: %s", output)
	}

	output = mustRun(t, "--server", url, "job", "status", "job_b")
	for _, want := range []string{"State:       DECIDED", "Completed:   4/4", "Invitations: 2", "#1 c2"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in status output, got: %s", want, output)
		}
	}

	output = mustRun(t, "--server", url, "job", "results", "job_b")
	if !strings.Contains(output, "4 results, 2 invited") {
		t.Errorf("expected summary in results output, got: %s", output)
	}

	output = mustRun(t, "--server", url, "dispatch", "job_b")
	if !strings.Contains(output, "ALREADY_HANDLED") {
		t.Errorf("expected ALREADY_HANDLED on redispatch, got: %s", output)
	}
}

func TestSubmitCommand_FromFile(t *testing.T) {
	url := startTestServer(t)
	mustRun(t, "--server", url, "job", "create", "--id", "job_f", "--title", "Analyst", "--enrolled", "5",
		"--answer-key", "a,b,c,d")

	path := filepath.Join(t.TempDir(), "submission.yaml")
	content := "candidate_id: dana\ncandidate_email: dana@example.com\nanswers: [a, b, x, d]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	output := mustRun(t, "--server", url, "submit", "job_f", "--file", path)
	if !strings.Contains(output, "Outcome: WAITING") || !strings.Contains(output, "1/5 completed") {
		t.Errorf("unexpected output: %s", output)
	}

	output = mustRun(t, "--server", url, "job", "results", "job_f")
	if !strings.Contains(output, "75.0") {
		t.Errorf("expected graded score 75.0, got: %s", output)
	}
}

func TestSubmitCommand_Rejected(t *testing.T) {
	url := startTestServer(t)
	mustRun(t, "--server", url, "job", "create", "--id", "job_r", "--title", "PM", "--enrolled", "5")
	mustRun(t, "--server", url, "submit", "job_r", "--candidate", "c1", "--email", "c1@example.com", "--score", "50")

	output, err := runCLI(t, "--server", url, "submit", "job_r", "--candidate", "c1", "--email", "c1@example.com", "--score", "60")
	if err == nil {
		t.Fatal("expected error for duplicate completion")
	}
	if !strings.Contains(output, "Outcome: REJECTED") {
		t.Errorf("expected rejected report in output, got: %s", output)
	}
	if !strings.Contains(err.Error(), "DUPLICATE_COMPLETION") {
		t.Errorf("error = %v, want DUPLICATE_COMPLETION", err)
	}
}

func TestSubmitCommand_MissingCandidate(t *testing.T) {
	url := startTestServer(t)
	if _, err := runCLI(t, "--server", url, "submit", "job_x", "--score", "10"); err == nil {
		t.Fatal("expected error for missing candidate")
	}
}

func TestDispatchCommand_Collecting(t *testing.T) {
	url := startTestServer(t)
	mustRun(t, "--server", url, "job", "create", "--id", "job_d", "--title", "Ops", "--enrolled", "5")

	_, err := runCLI(t, "--server", url, "dispatch", "job_d")
	if err == nil || !strings.Contains(err.Error(), "still collecting") {
		t.Errorf("error = %v, want still collecting", err)
	}
}

func TestJobCloseCommand(t *testing.T) {
	url := startTestServer(t)
	mustRun(t, "--server", url, "job", "create", "--id", "job_c", "--title", "Ops", "--enrolled", "5")

	output := mustRun(t, "--server", url, "job", "close", "job_c")
	if !strings.Contains(output, "Job job_c closed") {
		t.Errorf("unexpected output: %s", output)
	}
	if _, err := runCLI(t, "--server", url, "submit", "job_c", "--candidate", "c1", "--email", "c1@example.com", "--score", "50"); err == nil {
		t.Fatal("expected error submitting to a closed job")
	}
}
