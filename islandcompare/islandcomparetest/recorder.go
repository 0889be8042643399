// Package islandcomparetest provides a recording islandcompare.Service for tests
package islandcomparetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/brinkmanlab/islandcompare-cli/islandcompare"
)

// Recorder records every call made to it as a line like "upload genome.gbk"
// and answers from its fields
type Recorder struct {
	sync.Mutex
	calls  []string
	nextID int

	// States are returned by successive State calls, the last one repeats
	// complete is returned when empty
	States []islandcompare.State

	Datasets   []islandcompare.Dataset
	References []islandcompare.Reference
	Analyses   []islandcompare.Analysis
	Failures   []islandcompare.JobFailure

	// Outputs are the base names written by Download
	Outputs []string

	// Err is returned by every call whose name is a key
	Err map[string]error
}

func (r *Recorder) record(name, format string, args ...interface{}) error {
	r.Lock()
	defer r.Unlock()
	call := name
	if format != "" {
		call += " " + fmt.Sprintf(format, args...)
	}
	r.calls = append(r.calls, call)
	return r.Err[name]
}

// Calls returns the recorded calls in order
func (r *Recorder) Calls() []string {
	r.Lock()
	defer r.Unlock()
	return append([]string{}, r.calls...)
}

// Names returns the name of each recorded call in order
func (r *Recorder) Names() []string {
	names := []string{}
	for _, call := range r.Calls() {
		names = append(names, strings.SplitN(call, " ", 2)[0])
	}
	return names
}

func (r *Recorder) newID(prefix string) string {
	r.Lock()
	defer r.Unlock()
	r.nextID++
	return fmt.Sprintf("%v%d", prefix, r.nextID)
}

// Upload ..
func (r *Recorder) Upload(ctx context.Context, path, label string) (*islandcompare.Dataset, error) {
	if err := r.record("upload", "%v", filepath.Base(path)); err != nil {
		return nil, err
	}
	if label == "" {
		label = filepath.Base(path)
	}
	return &islandcompare.Dataset{ID: r.newID("d"), Name: label}, nil
}

// ListDatasets ..
func (r *Recorder) ListDatasets(ctx context.Context) ([]islandcompare.Dataset, error) {
	if err := r.record("list", ""); err != nil {
		return nil, err
	}
	return r.Datasets, nil
}

// DeleteDataset ..
func (r *Recorder) DeleteDataset(ctx context.Context, id string) error {
	return r.record("delete", "%v", id)
}

// ListReferences ..
func (r *Recorder) ListReferences(ctx context.Context, query string) ([]islandcompare.Reference, error) {
	if err := r.record("reference", "%v", query); err != nil {
		return nil, err
	}
	return r.References, nil
}

// Invoke ..
func (r *Recorder) Invoke(ctx context.Context, request islandcompare.InvokeRequest) (*islandcompare.Analysis, error) {
	err := r.record("invoke", "%v %v %v %v %v", request.Label, strings.Join(request.DatasetIDs, ","),
		request.NewickID, request.NewickMode, request.ReferenceID)
	if err != nil {
		return nil, err
	}
	return &islandcompare.Analysis{ID: r.newID("a"), Label: request.Label, State: islandcompare.StatePending}, nil
}

// ListAnalyses ..
func (r *Recorder) ListAnalyses(ctx context.Context) ([]islandcompare.Analysis, error) {
	if err := r.record("runs", ""); err != nil {
		return nil, err
	}
	return r.Analyses, nil
}

// State ..
func (r *Recorder) State(ctx context.Context, id string) (islandcompare.State, error) {
	if err := r.record("state", "%v", id); err != nil {
		return "", err
	}
	r.Lock()
	defer r.Unlock()
	if len(r.States) == 0 {
		return islandcompare.StateComplete, nil
	}
	state := r.States[0]
	if len(r.States) > 1 {
		r.States = r.States[1:]
	}
	return state, nil
}

// Download writes one empty file per output
func (r *Recorder) Download(ctx context.Context, id, dir string) ([]string, error) {
	if err := r.record("download", "%v", id); err != nil {
		return nil, err
	}
	paths := []string{}
	for _, name := range r.Outputs {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Cancel ..
func (r *Recorder) Cancel(ctx context.Context, id string) error {
	return r.record("cancel", "%v", id)
}

// Errors ..
func (r *Recorder) Errors(ctx context.Context, id string) ([]islandcompare.JobFailure, error) {
	if err := r.record("errors", "%v", id); err != nil {
		return nil, err
	}
	return r.Failures, nil
}

// DeleteAnalysis ..
func (r *Recorder) DeleteAnalysis(ctx context.Context, id string) error {
	return r.record("delete_analysis", "%v", id)
}

var _ islandcompare.Service = (*Recorder)(nil)

// Sleeper is a SleepFunc that records the durations instead of sleeping
type Sleeper struct {
	sync.Mutex
	Slept []time.Duration

	// Err is returned by every call when set
	Err error
}

// Sleep ..
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.Lock()
	defer s.Unlock()
	s.Slept = append(s.Slept, d)
	return s.Err
}
