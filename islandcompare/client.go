package islandcompare

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brinkmanlab/islandcompare-cli/galaxy"
	"github.com/brinkmanlab/islandcompare-cli/logging"
)

const (
	// WorkflowTag marks the published IslandCompare workflow
	WorkflowTag = "islandcompare"
	// WorkflowOwner is preferred when more than one workflow carries WorkflowTag
	WorkflowOwner = "brinkmanlab"

	// UploadHistoryTag marks the history holding user uploads
	UploadHistoryTag  = "user_data"
	uploadHistoryName = "Uploaded data"

	// AnalysisTag marks the output histories of analyses
	AnalysisTag = "IslandCompare"

	defaultDatasetPollInterval = time.Second
)

// Galaxy is the part of the galaxy api the client uses
type Galaxy interface {
	ListHistories(ctx context.Context) ([]galaxy.History, error)
	ShowHistory(ctx context.Context, id string) (*galaxy.History, error)
	CreateHistory(ctx context.Context, name string) (*galaxy.History, error)
	TagHistory(ctx context.Context, id string, tags []string) (*galaxy.History, error)
	DeleteHistory(ctx context.Context, id string) error
	HistoryContents(ctx context.Context, historyID string) ([]galaxy.HistoryContent, error)
	CreateListCollection(ctx context.Context, historyID, name string, elements []galaxy.CollectionElement) (*galaxy.Collection, error)

	UploadFile(ctx context.Context, historyID, path, name, fileType string) (*galaxy.Dataset, error)
	ShowDataset(ctx context.Context, id string) (*galaxy.Dataset, error)
	DeleteDataset(ctx context.Context, historyID, id string) error
	DownloadDataset(ctx context.Context, id, ext string, w io.Writer) (int64, error)
	ListGenomes(ctx context.Context) ([]galaxy.Genome, error)

	ListPublishedWorkflows(ctx context.Context) ([]galaxy.Workflow, error)
	ShowWorkflow(ctx context.Context, id string) (*galaxy.WorkflowDetails, error)
	InvokeWorkflow(ctx context.Context, workflowID string, request *galaxy.InvocationRequest) (*galaxy.Invocation, error)
	ListInvocations(ctx context.Context, workflowID, historyID string) ([]galaxy.Invocation, error)
	CancelInvocation(ctx context.Context, workflowID, invocationID string) error
	ShowInvocation(ctx context.Context, id string) (*galaxy.Invocation, error)
	ShowInvocationStep(ctx context.Context, invocationID, stepID string) (*galaxy.InvocationStep, error)
	ShowJob(ctx context.Context, id string) (*galaxy.Job, error)
}

var _ Galaxy = (*galaxy.Client)(nil)

// Options configures a Client, every field is optional
type Options struct {
	Logger logrus.FieldLogger
	Sleep  SleepFunc

	// DatasetPollInterval is the pause between checks of uploads that are still processing
	DatasetPollInterval time.Duration
}

// Client implements Service on top of the galaxy api
type Client struct {
	galaxy              Galaxy
	log                 logrus.FieldLogger
	sleep               SleepFunc
	datasetPollInterval time.Duration

	// resolved on first use
	uploadHistoryID string
	workflow        *galaxy.WorkflowDetails
}

var _ Service = (*Client)(nil)

// NewClient ..
func NewClient(g Galaxy, opts Options) *Client {
	c := &Client{
		galaxy:              g,
		log:                 opts.Logger,
		sleep:               opts.Sleep,
		datasetPollInterval: opts.DatasetPollInterval,
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	if c.sleep == nil {
		c.sleep = Sleep
	}
	if c.datasetPollInterval <= 0 {
		c.datasetPollInterval = defaultDatasetPollInterval
	}
	return c
}

// uploadHistory returns the id of the first history tagged UploadHistoryTag,
// creating it if there is none
func (c *Client) uploadHistory(ctx context.Context) (string, error) {
	if c.uploadHistoryID != "" {
		return c.uploadHistoryID, nil
	}
	histories, err := c.galaxy.ListHistories(ctx)
	if err != nil {
		return "", err
	}
	for _, h := range histories {
		if !h.Deleted && h.HasTag(UploadHistoryTag) {
			c.uploadHistoryID = h.ID
			return h.ID, nil
		}
	}

	c.log.Debug("creating upload history")
	h, err := c.galaxy.CreateHistory(ctx, uploadHistoryName)
	if err != nil {
		return "", err
	}
	if _, err = c.galaxy.TagHistory(ctx, h.ID, []string{UploadHistoryTag}); err != nil {
		return "", err
	}
	c.uploadHistoryID = h.ID
	return h.ID, nil
}

// findWorkflow returns the published IslandCompare workflow
func (c *Client) findWorkflow(ctx context.Context) (*galaxy.WorkflowDetails, error) {
	if c.workflow != nil {
		return c.workflow, nil
	}
	workflows, err := c.galaxy.ListPublishedWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	var found *galaxy.Workflow
	for i := range workflows {
		w := &workflows[i]
		if w.Deleted || !w.HasTag(WorkflowTag) {
			continue
		}
		if w.Owner == WorkflowOwner {
			found = w
			break
		}
		if found == nil {
			found = w
		}
	}
	if found == nil {
		return nil, ErrWorkflowNotFound
	}

	details, err := c.galaxy.ShowWorkflow(ctx, found.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %v: %w", found.ID, err)
	}
	c.log.WithFields(logrus.Fields{"id": details.ID, "owner": details.Owner}).Debug("found workflow")
	c.workflow = details
	return details, nil
}
