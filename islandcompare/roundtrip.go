package islandcompare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// RoundTripRequest holds the parameters of an upload, run and download in one go
type RoundTripRequest struct {
	Label       string
	Paths       []string
	NewickPath  string
	NewickMode  NewickIdentifiers
	ReferenceID string
	OutputDir   string
}

// RoundTrip uploads genomes, analyses them, downloads the results and
// removes everything it created from the server
//
// Nothing is rolled back when a step fails before the analysis ends,
// the ids left on the server are logged instead.
type RoundTrip struct {
	Service Service
	Waiter  *Waiter

	// Out receives the analysis id and the error reports
	Out io.Writer
	Log logrus.FieldLogger
	Now func() time.Time
}

func (r *RoundTrip) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *RoundTrip) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// Run returns the paths of the downloaded results
// a failed analysis is cleaned up and reported as a *JobError
func (r *RoundTrip) Run(ctx context.Context, request RoundTripRequest) ([]string, error) {
	start := r.now()

	r.log().Info("Uploading..")
	uploaded := make([]string, 0, len(request.Paths)+1)
	for _, path := range request.Paths {
		d, err := r.Service.Upload(ctx, path, "")
		if err != nil {
			r.leftBehind(uploaded, "")
			return nil, err
		}
		uploaded = append(uploaded, d.ID)
	}
	genomes := append([]string{}, uploaded...)
	newickID := ""
	if request.NewickPath != "" {
		d, err := r.Service.Upload(ctx, request.NewickPath, "")
		if err != nil {
			r.leftBehind(uploaded, "")
			return nil, err
		}
		newickID = d.ID
		uploaded = append(uploaded, d.ID)
	}

	r.log().Info("Running..")
	analysis, err := r.Service.Invoke(ctx, InvokeRequest{
		Label:       request.Label,
		DatasetIDs:  genomes,
		NewickID:    newickID,
		NewickMode:  request.NewickMode,
		ReferenceID: request.ReferenceID,
	})
	if err != nil {
		r.leftBehind(uploaded, "")
		return nil, err
	}
	r.log().Info("Analysis ID:")
	fmt.Fprintln(r.Out, analysis.ID)

	paths, err := r.Waiter.WaitAndDownload(ctx, analysis.ID, request.OutputDir)
	jobErr := &JobError{}
	failed := errors.As(err, &jobErr)
	if err != nil && !failed {
		r.leftBehind(uploaded, analysis.ID)
		return paths, err
	}

	if failed {
		if err = WriteFailures(r.Out, jobErr.Failures); err != nil {
			return paths, err
		}
	} else {
		r.log().Info("Collecting any errors..")
		failures, err := r.Service.Errors(ctx, analysis.ID)
		if err != nil {
			r.leftBehind(uploaded, analysis.ID)
			return paths, err
		}
		if len(failures) == 0 {
			r.log().Info("No errors found")
		} else if err = WriteFailures(r.Out, failures); err != nil {
			return paths, err
		}
	}
	r.log().Infof("Wall time: %.2f minutes", r.now().Sub(start).Minutes())

	r.log().Info("Cleaning up..")
	if err = r.cleanup(ctx, analysis.ID, uploaded); err != nil {
		return paths, err
	}
	if failed {
		return paths, jobErr
	}
	return paths, nil
}

// cleanup deletes the analysis and the uploads, carrying on past failures
func (r *RoundTrip) cleanup(ctx context.Context, analysisID string, uploaded []string) error {
	var first error
	if err := r.Service.DeleteAnalysis(ctx, analysisID); err != nil {
		r.log().WithField("id", analysisID).Warnf("failed to delete analysis: %v", err)
		first = err
	}
	for _, id := range uploaded {
		if err := r.Service.DeleteDataset(ctx, id); err != nil {
			r.log().WithField("id", id).Warnf("failed to delete dataset: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		return fmt.Errorf("cleanup incomplete: %w", first)
	}
	return nil
}

// leftBehind logs what an aborted round trip leaves on the server
func (r *RoundTrip) leftBehind(datasets []string, analysisID string) {
	for _, id := range datasets {
		r.log().Warnf("dataset %v was left on the server, remove it with: delete %v", id, id)
	}
	if analysisID != "" {
		r.log().Warnf("analysis %v was left on the server, resume with: download %v <PATH>", analysisID, analysisID)
	}
}
