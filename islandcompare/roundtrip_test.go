package islandcompare_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brinkmanlab/islandcompare-cli/islandcompare"
	"github.com/brinkmanlab/islandcompare-cli/islandcompare/islandcomparetest"
)

func newRoundTrip(service islandcompare.Service) (*islandcompare.RoundTrip, *bytes.Buffer, *test.Hook) {
	waiter, _, _ := newWaiter(service)
	logger, hook := test.NewNullLogger()
	waiter.Log = logger
	start := time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{start, start.Add(90 * time.Second)}
	out := &bytes.Buffer{}
	return &islandcompare.RoundTrip{
		Service: service,
		Waiter:  waiter,
		Out:     out,
		Log:     logger,
		Now: func() time.Time {
			now := times[0]
			if len(times) > 1 {
				times = times[1:]
			}
			return now
		},
	}, out, hook
}

func messages(hook *test.Hook) []string {
	out := []string{}
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.InfoLevel {
			out = append(out, entry.Message)
		}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	service := &islandcomparetest.Recorder{
		States: []islandcompare.State{
			islandcompare.StateRunning,
			islandcompare.StateRunning,
			islandcompare.StateComplete,
		},
		Outputs: []string{"Results.gff3"},
	}
	roundTrip, out, hook := newRoundTrip(service)
	dir := t.TempDir()

	paths, err := roundTrip.Run(context.Background(), islandcompare.RoundTripRequest{
		Label:     "test run",
		Paths:     []string{"/data/a.gbk", "/data/b.gbk"},
		OutputDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "Results.gff3")}, paths)
	assert.Equal(t, []string{
		"upload a.gbk",
		"upload b.gbk",
		"invoke test run d1,d2   ",
		"state a3",
		"state a3",
		"state a3",
		"download a3",
		"errors a3",
		"delete_analysis a3",
		"delete d1",
		"delete d2",
	}, service.Calls())
	assert.Equal(t, "a3\n", out.String())
	assert.Equal(t, []string{
		"Uploading..",
		"Running..",
		"Analysis ID:",
		"Waiting for results..",
		"Downloading..",
		"Collecting any errors..",
		"No errors found",
		"Wall time: 1.50 minutes",
		"Cleaning up..",
	}, messages(hook))
}

func TestRoundTripNewick(t *testing.T) {
	service := &islandcomparetest.Recorder{}
	roundTrip, _, _ := newRoundTrip(service)

	_, err := roundTrip.Run(context.Background(), islandcompare.RoundTripRequest{
		Label:       "tree",
		Paths:       []string{"a.gbk", "b.gbk"},
		NewickPath:  "tree.nwk",
		NewickMode:  islandcompare.NewickAccessions,
		ReferenceID: "NC_000913.3",
		OutputDir:   t.TempDir(),
	})
	require.NoError(t, err)
	calls := service.Calls()
	assert.Equal(t, "upload tree.nwk", calls[2])
	assert.Equal(t, "invoke tree d1,d2 d3 accession NC_000913.3", calls[3])
	assert.Equal(t, []string{"delete_analysis a4", "delete d1", "delete d2", "delete d3"}, calls[len(calls)-4:])
}

func TestRoundTripJobError(t *testing.T) {
	service := &islandcomparetest.Recorder{
		States: []islandcompare.State{islandcompare.StateError},
		Failures: []islandcompare.JobFailure{
			{JobID: "j1", Report: "Sigi on a.gbk - output: failed\nsegfault\n"},
		},
	}
	roundTrip, out, _ := newRoundTrip(service)

	paths, err := roundTrip.Run(context.Background(), islandcompare.RoundTripRequest{
		Label:     "failing",
		Paths:     []string{"a.gbk", "b.gbk"},
		OutputDir: t.TempDir(),
	})
	assert.Empty(t, paths)
	jobErr := &islandcompare.JobError{}
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, []string{
		"upload", "upload", "invoke", "state", "errors",
		"delete_analysis", "delete", "delete",
	}, service.Names())
	assert.Equal(t, "a3\nSigi on a.gbk - output: failed\nsegfault\n", out.String())
}

func TestRoundTripUploadFailure(t *testing.T) {
	service := &islandcomparetest.Recorder{}
	roundTrip, _, hook := newRoundTrip(service)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.gbk")
	require.NoError(t, os.WriteFile(a, nil, 0644))

	failure := errors.New("HTTP status 500")
	service.Err = map[string]error{"invoke": failure}
	_, err := roundTrip.Run(context.Background(), islandcompare.RoundTripRequest{
		Label: "broken",
		Paths: []string{a, a},
	})
	assert.Equal(t, failure, err)
	assert.Equal(t, []string{"upload", "upload", "invoke"}, service.Names())

	warnings := []string{}
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, entry.Message)
		}
	}
	assert.Equal(t, []string{
		"dataset d1 was left on the server, remove it with: delete d1",
		"dataset d2 was left on the server, remove it with: delete d2",
	}, warnings)
}
