package islandcompare

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound is returned when the instance publishes no IslandCompare workflow
	ErrWorkflowNotFound = errors.New("IslandCompare workflow not found on the galaxy instance")

	// ErrNotFile is returned when an upload path is not a regular file
	ErrNotFile = errors.New("invalid file path specified")

	// ErrTooFewDatasets is returned when an analysis is given less than two datasets
	ErrTooFewDatasets = errors.New("at least two datasets are required")
)

// JobError is returned when an analysis ended without results
type JobError struct {
	AnalysisID string
	State      State
	Failures   []JobFailure
}

func (e *JobError) Error() string {
	if e.State == StateCancelled {
		return fmt.Sprintf("analysis %v was cancelled", e.AnalysisID)
	}
	return fmt.Sprintf("analysis %v failed with %d failed job(s)", e.AnalysisID, len(e.Failures))
}
