package islandcompare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brinkmanlab/islandcompare-cli/galaxy"
)

// names fixed by the workflow and by galaxy
const (
	inputDatasets      = "Input datasets"
	inputNewick        = "Phylogenetic tree in newick format"
	inputIdentifiers   = "Newick Identifiers"
	inputReference     = "Reference Genome"
	inputCollection    = "input_data"
	resultsOutput      = "Results"
	inactiveInvocation = "Cannot cancel an inactive workflow invocation."
)

// dataset states counted as still busy in a history's state details
var activeDatasetStates = []string{"new", "upload", "queued", "running", "setting_metadata"}

var nonWord = regexp.MustCompile(`\W`)

// SanitizeReference turns a typed accession into a reference genome id
func SanitizeReference(id string) string {
	return nonWord.ReplaceAllString(id, "_")
}

// Invoke starts an analysis of uploaded datasets
func (c *Client) Invoke(ctx context.Context, request InvokeRequest) (*Analysis, error) {
	if len(request.DatasetIDs) < 2 {
		return nil, ErrTooFewDatasets
	}
	wf, err := c.findWorkflow(ctx)
	if err != nil {
		return nil, err
	}

	ids := append([]string{}, request.DatasetIDs...)
	if request.NewickID != "" {
		ids = append(ids, request.NewickID)
	}
	datasets, err := c.waitDatasets(ctx, ids)
	if err != nil {
		return nil, err
	}

	history, err := c.galaxy.CreateHistory(ctx, request.Label)
	if err != nil {
		return nil, fmt.Errorf("failed to create output history: %w", err)
	}
	if _, err = c.galaxy.TagHistory(ctx, history.ID, []string{wf.ID, AnalysisTag}); err != nil {
		return nil, fmt.Errorf("failed to tag output history: %w", err)
	}

	elements := make([]galaxy.CollectionElement, 0, len(request.DatasetIDs))
	for _, id := range request.DatasetIDs {
		elements = append(elements, galaxy.CollectionElement{ID: id, Name: datasets[id].Name, Src: "hda"})
	}
	collection, err := c.galaxy.CreateListCollection(ctx, history.ID, inputCollection, elements)
	if err != nil {
		return nil, fmt.Errorf("failed to collect input datasets: %w", err)
	}

	inputs := map[string]interface{}{}
	index, ok := wf.InputIndex(inputDatasets)
	if !ok {
		return nil, fmt.Errorf("workflow %v has no %q input", wf.ID, inputDatasets)
	}
	inputs[index] = galaxy.Ref{ID: collection.ID, Src: "hdca"}

	var newick interface{}
	if request.NewickID != "" {
		newick = galaxy.Ref{ID: request.NewickID, Src: "hda"}
	}
	identifiers := "True"
	if request.NewickMode == NewickAccessions {
		identifiers = "False"
	}
	optional := []struct {
		label string
		value interface{}
	}{
		{inputNewick, newick},
		{inputIdentifiers, identifiers},
		{inputReference, SanitizeReference(request.ReferenceID)},
	}
	for _, input := range optional {
		index, ok := wf.InputIndex(input.label)
		if !ok {
			c.log.Debugf("workflow has no %q input", input.label)
			continue
		}
		inputs[index] = input.value
	}

	inv, err := c.galaxy.InvokeWorkflow(ctx, wf.ID, &galaxy.InvocationRequest{
		HistoryID:                 history.ID,
		Inputs:                    inputs,
		InputsBy:                  "step_index",
		AllowToolStateCorrections: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke workflow: %w", err)
	}
	return &Analysis{ID: inv.ID, Label: request.Label, State: StatePending}, nil
}

// waitDatasets blocks until every dataset is done processing
func (c *Client) waitDatasets(ctx context.Context, ids []string) (map[string]*galaxy.Dataset, error) {
	datasets := make(map[string]*galaxy.Dataset, len(ids))
	for _, id := range ids {
		for {
			d, err := c.galaxy.ShowDataset(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to check dataset %v: %w", id, err)
			}
			if galaxy.DatasetTerminal(d.State) {
				if d.State != galaxy.DatasetStateOK {
					return nil, fmt.Errorf("dataset %v (%v) is in state %v: %v", id, d.Name, d.State, d.MiscInfo)
				}
				datasets[id] = d
				break
			}
			c.log.WithFields(logrus.Fields{"id": id, "state": d.State}).Debug("waiting for dataset")
			if err = c.sleep(ctx, c.datasetPollInterval); err != nil {
				return nil, err
			}
		}
	}
	return datasets, nil
}

// ListAnalyses returns every invocation of the workflow in the analysis histories
func (c *Client) ListAnalyses(ctx context.Context) ([]Analysis, error) {
	wf, err := c.findWorkflow(ctx)
	if err != nil {
		return nil, err
	}
	histories, err := c.galaxy.ListHistories(ctx)
	if err != nil {
		return nil, err
	}

	analyses := []Analysis{}
	for _, h := range histories {
		if h.Deleted || !(h.HasTag(wf.ID) || h.HasTag(AnalysisTag)) {
			continue
		}
		invocations, err := c.galaxy.ListInvocations(ctx, wf.ID, h.ID)
		if err != nil {
			return nil, err
		}
		for _, inv := range invocations {
			state, err := c.State(ctx, inv.ID)
			if err != nil {
				return nil, err
			}
			analyses = append(analyses, Analysis{ID: inv.ID, Label: h.Name, State: state})
		}
	}
	return analyses, nil
}

// State derives the state of an analysis from its invocation, history and outputs
func (c *Client) State(ctx context.Context, id string) (State, error) {
	inv, err := c.galaxy.ShowInvocation(ctx, id)
	if err != nil {
		return "", err
	}
	switch inv.State {
	case galaxy.InvocationStateCancelled:
		return StateCancelled, nil
	case galaxy.InvocationStateFailed:
		return StateError, nil
	case galaxy.InvocationStateNew, galaxy.InvocationStateReady:
		return StatePending, nil
	}

	history, err := c.galaxy.ShowHistory(ctx, inv.HistoryID)
	if err != nil {
		return "", err
	}
	// jobs failed but others are still going
	if history.StateDetails[galaxy.DatasetStateError] > 0 {
		for _, s := range activeDatasetStates {
			if history.StateDetails[s] > 0 {
				return StateRunning, nil
			}
		}
	}

	if _, ok := inv.Outputs[resultsOutput]; !ok {
		return StateError, nil
	}
	running := false
	for _, label := range outputLabels(inv) {
		d, err := c.galaxy.ShowDataset(ctx, inv.Outputs[label].ID)
		if err != nil {
			return "", err
		}
		switch d.State {
		case galaxy.DatasetStateError, galaxy.DatasetStatePaused:
			return StateError, nil
		case galaxy.DatasetStateOK:
		default:
			running = true
		}
	}
	if running {
		return StateRunning, nil
	}
	return StateComplete, nil
}

// outputLabels returns the labels of the dataset outputs of an invocation in order
func outputLabels(inv *galaxy.Invocation) []string {
	labels := make([]string, 0, len(inv.Outputs))
	for label, ref := range inv.Outputs {
		if ref.Src == "" || ref.Src == "hda" {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// Download writes every output of an analysis to dir/<label>.<ext>
func (c *Client) Download(ctx context.Context, id, dir string) ([]string, error) {
	inv, err := c.galaxy.ShowInvocation(ctx, id)
	if err != nil {
		return nil, err
	}
	paths := []string{}
	for _, label := range outputLabels(inv) {
		d, err := c.galaxy.ShowDataset(ctx, inv.Outputs[label].ID)
		if err != nil {
			return paths, err
		}
		name := strings.ReplaceAll(label, string(os.PathSeparator), "_")
		path := filepath.Join(dir, name+"."+d.Extension)
		c.log.WithFields(logrus.Fields{"output": label, "path": path}).Debug("downloading")
		if err = c.download(ctx, d, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (c *Client) download(ctx context.Context, d *galaxy.Dataset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	_, err = c.galaxy.DownloadDataset(ctx, d.ID, d.Extension, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Cancel stops an analysis and purges its output history
func (c *Client) Cancel(ctx context.Context, id string) error {
	wf, err := c.findWorkflow(ctx)
	if err != nil {
		return err
	}
	inv, err := c.galaxy.ShowInvocation(ctx, id)
	if err != nil {
		return err
	}
	if err = c.galaxy.CancelInvocation(ctx, wf.ID, id); err != nil {
		remote := &galaxy.RemoteError{}
		if !errors.As(err, &remote) || remote.Message != inactiveInvocation {
			return err
		}
		c.log.WithField("id", id).Debug("invocation already inactive")
	}
	return c.galaxy.DeleteHistory(ctx, inv.HistoryID)
}

// DeleteAnalysis purges the output history of an analysis
func (c *Client) DeleteAnalysis(ctx context.Context, id string) error {
	inv, err := c.galaxy.ShowInvocation(ctx, id)
	if err != nil {
		return err
	}
	return c.galaxy.DeleteHistory(ctx, inv.HistoryID)
}
