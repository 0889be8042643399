package islandcompare

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/brinkmanlab/islandcompare-cli/galaxy"
)

// Errors builds a report for every failed job of an analysis,
// including the jobs of sub-workflows
func (c *Client) Errors(ctx context.Context, id string) ([]JobFailure, error) {
	inv, err := c.galaxy.ShowInvocation(ctx, id)
	if err != nil {
		return nil, err
	}

	type queued struct {
		invocationID string
		step         galaxy.InvocationStep
	}
	queue := make([]queued, 0, len(inv.Steps))
	for _, step := range inv.Steps {
		queue = append(queue, queued{inv.ID, step})
	}

	failures := []JobFailure{}
	for i := 0; i < len(queue); i++ {
		q := queue[i]
		if q.step.SubworkflowInvocationID != "" {
			sub, err := c.galaxy.ShowInvocation(ctx, q.step.SubworkflowInvocationID)
			if err != nil {
				return nil, err
			}
			for _, step := range sub.Steps {
				queue = append(queue, queued{sub.ID, step})
			}
			continue
		}

		step, err := c.galaxy.ShowInvocationStep(ctx, q.invocationID, q.step.ID)
		if err != nil {
			return nil, err
		}
		for _, summary := range step.Jobs {
			if summary.State != galaxy.JobStateError {
				continue
			}
			job, err := c.galaxy.ShowJob(ctx, summary.ID)
			if err != nil {
				return nil, err
			}
			label := step.WorkflowStepLabel
			if label == "" {
				label = job.ToolID
			}
			report, err := c.jobReport(ctx, label, job)
			if err != nil {
				return nil, err
			}
			failures = append(failures, JobFailure{JobID: job.ID, Report: report})
		}
	}
	return failures, nil
}

// jobReport lists the failed outputs of a job followed by its stderr
func (c *Client) jobReport(ctx context.Context, label string, job *galaxy.Job) (string, error) {
	identifier := inputIdentifier(job)
	names := make([]string, 0, len(job.Outputs))
	for name := range job.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	b := &strings.Builder{}
	for _, name := range names {
		ref := job.Outputs[name]
		if ref.Src != "" && ref.Src != "hda" {
			continue
		}
		d, err := c.galaxy.ShowDataset(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		if d.State != galaxy.DatasetStateError {
			continue
		}
		fmt.Fprintf(b, "%s on %s - %s: %s\n", label, identifier, name, d.MiscInfo)
	}
	b.WriteString(job.Stderr)
	b.WriteString("\n")
	return b.String(), nil
}

// inputIdentifier names the dataset(s) a job ran on
func inputIdentifier(job *galaxy.Job) string {
	names := make([]string, 0, len(job.Inputs))
	for name := range job.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	identifiers := []string{}
	for _, name := range names {
		if id, ok := job.Param(name + "|__identifier__"); ok {
			identifiers = append(identifiers, id)
		}
	}
	switch len(identifiers) {
	case 0:
		return ""
	case 1:
		return identifiers[0]
	}
	return "[" + strings.Join(identifiers, ", ") + "]"
}

// WriteFailures prints the reports of failed jobs
func WriteFailures(w io.Writer, failures []JobFailure) error {
	for _, f := range failures {
		if _, err := io.WriteString(w, f.Report); err != nil {
			return err
		}
	}
	return nil
}
