package islandcompare

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Waiter polls an analysis until it stops running
type Waiter struct {
	Service  Service
	Interval time.Duration

	// Sleep defaults to the package level Sleep
	Sleep SleepFunc
	Log   logrus.FieldLogger
}

func (w *Waiter) sleep(ctx context.Context, d time.Duration) error {
	if w.Sleep == nil {
		return Sleep(ctx, d)
	}
	return w.Sleep(ctx, d)
}

func (w *Waiter) log() logrus.FieldLogger {
	if w.Log == nil {
		return logrus.StandardLogger()
	}
	return w.Log
}

// Wait returns the first terminal state of the analysis
// there is no limit on the number of polls
func (w *Waiter) Wait(ctx context.Context, id string) (State, error) {
	for {
		state, err := w.Service.State(ctx, id)
		if err != nil {
			w.stopped(id, err)
			return "", err
		}
		w.log().WithFields(logrus.Fields{"id": id, "state": state}).Debug("polled analysis")
		if state.Terminal() {
			return state, nil
		}
		if err = w.sleep(ctx, w.Interval); err != nil {
			w.stopped(id, err)
			return state, err
		}
	}
}

// stopped tells the user the analysis goes on without us
func (w *Waiter) stopped(id string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		w.log().Warnf("Stopped waiting. Analysis %v continues on the server, resume with: download %v <PATH>", id, id)
	}
}

// WaitAndDownload waits for the analysis, then downloads its results into dir
// a failed or cancelled analysis yields a *JobError and nothing is downloaded
func (w *Waiter) WaitAndDownload(ctx context.Context, id, dir string) ([]string, error) {
	w.log().Info("Waiting for results..")
	state, err := w.Wait(ctx, id)
	if err != nil {
		return nil, err
	}

	switch state {
	case StateComplete:
		w.log().Info("Downloading..")
		return w.Service.Download(ctx, id, dir)
	case StateError:
		w.log().Info("Collecting any errors..")
		failures, err := w.Service.Errors(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("analysis %v failed, and its errors could not be collected: %w", id, err)
		}
		return nil, &JobError{AnalysisID: id, State: state, Failures: failures}
	}
	return nil, &JobError{AnalysisID: id, State: state}
}
