// Package islandcompare drives the IslandCompare workflow on a galaxy instance:
// uploading genomes, starting analyses, following their state and collecting
// their results and errors.
package islandcompare

import (
	"context"
	"time"
)

// State is the overall state of an analysis
type State string

// analysis states
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateComplete  State = "complete"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the analysis will not change state anymore
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateError, StateCancelled:
		return true
	}
	return false
}

// Dataset is an uploaded file, Name is its label
type Dataset struct {
	ID        string
	Name      string
	Extension string
	State     string
}

// Reference is a genome the analysis can align drafts against
type Reference struct {
	ID   string
	Name string
}

// Analysis is one invocation of the workflow
type Analysis struct {
	ID    string
	Label string
	State State
}

// NewickIdentifiers says how the leaves of a newick tree name the genomes
type NewickIdentifiers string

// newick identifier modes
const (
	NewickLabels     NewickIdentifiers = "label"
	NewickAccessions NewickIdentifiers = "accession"
)

// InvokeRequest holds the parameters of a new analysis
type InvokeRequest struct {
	Label      string
	DatasetIDs []string

	// NewickID is an optional uploaded tree relating the datasets
	NewickID   string
	NewickMode NewickIdentifiers

	// ReferenceID is an optional reference genome for aligning drafts
	ReferenceID string
}

// JobFailure is the error report of one failed job
type JobFailure struct {
	JobID  string
	Report string
}

// Service is everything the cli can do against IslandCompare
type Service interface {
	Upload(ctx context.Context, path, label string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
	DeleteDataset(ctx context.Context, id string) error
	ListReferences(ctx context.Context, query string) ([]Reference, error)

	Invoke(ctx context.Context, request InvokeRequest) (*Analysis, error)
	ListAnalyses(ctx context.Context) ([]Analysis, error)
	State(ctx context.Context, id string) (State, error)
	Download(ctx context.Context, id, dir string) ([]string, error)
	Cancel(ctx context.Context, id string) error
	Errors(ctx context.Context, id string) ([]JobFailure, error)
	DeleteAnalysis(ctx context.Context, id string) error
}

// SleepFunc pauses for d, or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the SleepFunc used unless another is given
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
