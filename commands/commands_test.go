package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brinkmanlab/islandcompare-cli/config"
	"github.com/brinkmanlab/islandcompare-cli/galaxy"
	"github.com/brinkmanlab/islandcompare-cli/islandcompare"
	"github.com/brinkmanlab/islandcompare-cli/islandcompare/islandcomparetest"
)

type testEnv struct {
	*Env
	service  *islandcomparetest.Recorder
	sleeper  *islandcomparetest.Sleeper
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	services int
	conf     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvHost, "")
	t.Setenv(config.EnvKey, "")
	t.Setenv(config.EnvPollInterval, "")

	te := &testEnv{
		service: &islandcomparetest.Recorder{},
		sleeper: &islandcomparetest.Sleeper{},
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
	}
	start := time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC)
	te.Env = &Env{
		Context: context.Background(),
		Stdout:  te.stdout,
		Stderr:  te.stderr,
		NewService: func(conf *config.Config, log logrus.FieldLogger) (islandcompare.Service, error) {
			te.services++
			te.conf = conf
			return te.service, nil
		},
		Sleep: te.sleeper.Sleep,
		Now:   func() time.Time { return start },
	}
	return te
}

func (te *testEnv) run(args ...string) int {
	return Run(te.Env, append([]string{"islandcompare", "--key", "secret"}, args...))
}

func writeFile(t *testing.T, dir, name string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	return path
}

func TestUsageErrorsMakeNoCalls(t *testing.T) {
	dir := t.TempDir()
	genome := writeFile(t, dir, "a.gbk")
	missing := filepath.Join(dir, "missing.gbk")

	cases := map[string][]string{
		"upload without path":       {"upload"},
		"upload too many args":      {"upload", genome, "label", "extra"},
		"upload missing file":       {"upload", missing},
		"upload directory":          {"upload", dir},
		"list with args":            {"list", "extra"},
		"delete without id":         {"delete"},
		"reference two queries":     {"reference", "a", "b"},
		"run without ids":           {"run", "label"},
		"run with one id":           {"run", "label", "d1"},
		"run with both newick":      {"run", "-a", "t1", "-l", "t1", "label", "d1", "d2"},
		"run with missing output":   {"run", "-o", filepath.Join(dir, "nowhere"), "label", "d1", "d2"},
		"run with bad s3 output":    {"run", "-o", "s3:///prefix", "label", "d1", "d2"},
		"run with unknown flag":     {"run", "-x", "label", "d1", "d2"},
		"runs with args":            {"runs", "extra"},
		"download without output":   {"download", "a1"},
		"download to a file":        {"download", "a1", genome},
		"cancel without id":         {"cancel"},
		"errors without id":         {"errors"},
		"upload_run one genome":     {"upload_run", "label", genome, dir},
		"upload_run missing genome": {"upload_run", "label", genome, missing, dir},
		"upload_run missing newick": {"upload_run", "-a", missing, "label", genome, genome, dir},
		"upload_run output is file": {"upload_run", "label", genome, genome, genome},
		"unknown command":           {"bogus"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			te := newTestEnv(t)
			assert.Equal(t, ExitUsage, te.run(args...))
			assert.Equal(t, 0, te.services)
			assert.Empty(t, te.service.Calls())
			assert.Empty(t, te.stdout.String())
			assert.Contains(t, te.stderr.String(), "ERROR: ")
		})
	}
}

func TestMissingKey(t *testing.T) {
	te := newTestEnv(t)
	code := Run(te.Env, []string{"islandcompare", "list"})
	assert.Equal(t, ExitUsage, code)
	assert.Equal(t, 0, te.services)
	assert.Contains(t, te.stderr.String(), config.EnvKey)
}

func TestUsageLine(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitUsage, te.run("run", "label", "d1"))
	assert.Contains(t, te.stderr.String(), "ERROR: expected a LABEL and at least two dataset IDs\n")
	assert.Contains(t, te.stderr.String(), "usage: islandcompare run LABEL ID ID [ID...]\n")
}

func TestGlobalFlags(t *testing.T) {
	te := newTestEnv(t)
	code := Run(te.Env, []string{"islandcompare", "--host", "http://localhost:8080", "--key", "k",
		"--poll-interval", "3s", "--s3-region", "ca-central-1", "list"})
	assert.Equal(t, ExitOK, code)
	require.NotNil(t, te.conf)
	assert.Equal(t, &config.Config{
		Host:         "http://localhost:8080",
		Key:          "k",
		PollInterval: 3 * time.Second,
		S3Region:     "ca-central-1",
	}, te.conf)
}

func TestUpload(t *testing.T) {
	te := newTestEnv(t)
	genome := writeFile(t, t.TempDir(), "genome.gbk")

	assert.Equal(t, ExitOK, te.run("upload", genome, "my genome"))
	assert.Equal(t, "d1\n", te.stdout.String())
	assert.Equal(t, []string{"upload genome.gbk"}, te.service.Calls())
	assert.Equal(t, "Uploading..\nDataset ID:\n", te.stderr.String())
}

func TestList(t *testing.T) {
	te := newTestEnv(t)
	te.service.Datasets = []islandcompare.Dataset{{ID: "d1", Name: "genome.gbk"}, {ID: "d2", Name: "other"}}

	assert.Equal(t, ExitOK, te.run("list"))
	assert.Equal(t, "d1\tgenome.gbk\nd2\tother\n", te.stdout.String())
	assert.Equal(t, "ID\tLabel\n", te.stderr.String())

	te = newTestEnv(t)
	assert.Equal(t, ExitOK, te.run("list"))
	assert.Empty(t, te.stdout.String())
	assert.Equal(t, "No datasets found\n", te.stderr.String())
}

func TestDelete(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitOK, te.run("delete", "d1"))
	assert.Equal(t, []string{"delete d1"}, te.service.Calls())
}

func TestReference(t *testing.T) {
	te := newTestEnv(t)
	te.service.References = []islandcompare.Reference{{ID: "NC_000913_3", Name: "Escherichia coli K-12"}}

	assert.Equal(t, ExitOK, te.run("reference", "coli"))
	assert.Equal(t, "NC_000913_3\tEscherichia coli K-12\n", te.stdout.String())
	assert.Equal(t, []string{"reference coli"}, te.service.Calls())
}

func TestRun(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitOK, te.run("run", "-r", "NC_000913.3", "label", "d1", "d2"))
	assert.Equal(t, "a1\n", te.stdout.String())
	assert.Equal(t, []string{"invoke label d1,d2   NC_000913.3"}, te.service.Calls())
}

func TestRunNewick(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitOK, te.run("run", "-a", "t1", "label", "d1", "d2", "d3"))
	assert.Equal(t, []string{"invoke label d1,d2,d3 t1 accession "}, te.service.Calls())

	te = newTestEnv(t)
	assert.Equal(t, ExitOK, te.run("run", "-l", "t1", "label", "d1", "d2"))
	assert.Equal(t, []string{"invoke label d1,d2 t1 label "}, te.service.Calls())
}

func TestRunAndDownload(t *testing.T) {
	te := newTestEnv(t)
	te.service.States = []islandcompare.State{islandcompare.StateRunning, islandcompare.StateRunning, islandcompare.StateComplete}
	te.service.Outputs = []string{"Results.gff3"}
	dir := t.TempDir()

	code := Run(te.Env, []string{"islandcompare", "--key", "k", "--poll-interval", "2s",
		"run", "-o", dir, "label", "d1", "d2"})
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "a1\n"+filepath.Join(dir, "Results.gff3")+"\n", te.stdout.String())
	assert.Equal(t, []string{"invoke", "state", "state", "state", "download"}, te.service.Names())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, te.sleeper.Slept)
}

func TestDownload(t *testing.T) {
	te := newTestEnv(t)
	te.service.Outputs = []string{"Genomic Islands.tabular", "Results.gff3"}
	dir := t.TempDir()

	assert.Equal(t, ExitOK, te.run("download", "a1", dir))
	assert.Equal(t, filepath.Join(dir, "Genomic Islands.tabular")+"\n"+filepath.Join(dir, "Results.gff3")+"\n", te.stdout.String())
	assert.Equal(t, []string{"state a1", "download a1"}, te.service.Calls())
}

func TestDownloadFailedAnalysis(t *testing.T) {
	te := newTestEnv(t)
	te.service.States = []islandcompare.State{islandcompare.StateRunning, islandcompare.StateError}
	te.service.Failures = []islandcompare.JobFailure{{JobID: "j1", Report: "Sigi on a - out: failed\nsegfault\n"}}

	assert.Equal(t, ExitFailed, te.run("download", "a1", t.TempDir()))
	assert.Equal(t, []string{"state", "state", "errors"}, te.service.Names())
	assert.Equal(t, "Sigi on a - out: failed\nsegfault\n", te.stdout.String())
	assert.Contains(t, te.stderr.String(), "ERROR: analysis a1 failed with 1 failed job(s)")
}

func TestRuns(t *testing.T) {
	te := newTestEnv(t)
	te.service.Analyses = []islandcompare.Analysis{
		{ID: "a1", Label: "first", State: islandcompare.StateComplete},
		{ID: "a2", Label: "second", State: islandcompare.StateRunning},
	}
	assert.Equal(t, ExitOK, te.run("runs"))
	assert.Equal(t, "a1\tfirst\tcomplete\na2\tsecond\trunning\n", te.stdout.String())
	assert.Equal(t, "ID\tLabel\tState\n", te.stderr.String())
}

func TestCancel(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitOK, te.run("cancel", "a1"))
	assert.Equal(t, []string{"cancel a1"}, te.service.Calls())
}

func TestErrors(t *testing.T) {
	te := newTestEnv(t)
	te.service.Failures = []islandcompare.JobFailure{
		{JobID: "j1", Report: "Sigi on a - out: failed\nsegfault\n"},
		{JobID: "j2", Report: "Mauve on [a, b] - aln: killed\noom\n"},
	}
	assert.Equal(t, ExitOK, te.run("errors", "a1"))
	assert.Equal(t, "Sigi on a - out: failed\nsegfault\nMauve on [a, b] - aln: killed\noom\n", te.stdout.String())

	te = newTestEnv(t)
	assert.Equal(t, ExitOK, te.run("errors", "a1"))
	assert.Empty(t, te.stdout.String())
	assert.Equal(t, "No errors found\n", te.stderr.String())
}

func TestUploadRun(t *testing.T) {
	te := newTestEnv(t)
	te.service.States = []islandcompare.State{islandcompare.StateRunning, islandcompare.StateComplete}
	te.service.Outputs = []string{"Results.gff3"}
	dir := t.TempDir()
	a := writeFile(t, dir, "a.gbk")
	b := writeFile(t, dir, "b.gbk")
	tree := writeFile(t, dir, "tree.nwk")
	out := t.TempDir()

	assert.Equal(t, ExitOK, te.run("upload_run", "-l", tree, "label", a, b, out))
	assert.Equal(t, []string{
		"upload a.gbk",
		"upload b.gbk",
		"upload tree.nwk",
		"invoke label d1,d2 d3 label ",
		"state a4",
		"state a4",
		"download a4",
		"errors a4",
		"delete_analysis a4",
		"delete d1",
		"delete d2",
		"delete d3",
	}, te.service.Calls())
	assert.Equal(t, "a4\n"+filepath.Join(out, "Results.gff3")+"\n", te.stdout.String())
	assert.Contains(t, te.stderr.String(), "Wall time: 0.00 minutes\n")
}

func TestRemoteError(t *testing.T) {
	te := newTestEnv(t)
	te.service.Err = map[string]error{"runs": &galaxy.RemoteError{
		Method:     "GET",
		Path:       "histories",
		StatusCode: 500,
		Message:    "internal error",
	}}
	assert.Equal(t, ExitFailed, te.run("runs"))
	assert.Equal(t, "ERROR: GET histories: HTTP status 500: internal error\n", te.stderr.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitUsage, ExitCode(&UsageError{Message: "bad"}))
	assert.Equal(t, ExitFailed, ExitCode(&galaxy.RemoteError{StatusCode: 403}))
	assert.Equal(t, ExitFailed, ExitCode(&islandcompare.JobError{AnalysisID: "a1", State: islandcompare.StateError}))
	assert.Equal(t, ExitFailed, ExitCode(errors.New("connection refused")))
}
