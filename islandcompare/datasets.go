package islandcompare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinzhu/copier"

	"github.com/brinkmanlab/islandcompare-cli/galaxy"
)

// galaxy datatypes keyed on lower case file extension
var datatypes = map[string]string{
	"genbank": "genbank",
	"gbk":     "genbank",
	"gbff":    "genbank",
	"embl":    "embl",
	"newick":  "newick",
	"nwk":     "newick",
}

// Datatype returns the galaxy datatype for a file, or galaxy.AutoDetect
func Datatype(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if t, ok := datatypes[ext]; ok {
		return t
	}
	return galaxy.AutoDetect
}

// Upload sends a local file to the upload history
// label defaults to the base name of path
func (c *Client) Upload(ctx context.Context, path, label string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %v", ErrNotFile, path)
	}
	if label == "" {
		label = filepath.Base(path)
	}
	historyID, err := c.uploadHistory(ctx)
	if err != nil {
		return nil, err
	}

	c.log.WithField("path", path).Debug("uploading")
	uploaded, err := c.galaxy.UploadFile(ctx, historyID, path, label, Datatype(path))
	if err != nil {
		return nil, fmt.Errorf("failed to upload %v: %w", path, err)
	}
	dataset := &Dataset{}
	if err = copier.Copy(dataset, uploaded); err != nil {
		return nil, err
	}
	return dataset, nil
}

// ListDatasets returns the uploads that have not been deleted
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	historyID, err := c.uploadHistory(ctx)
	if err != nil {
		return nil, err
	}
	contents, err := c.galaxy.HistoryContents(ctx, historyID)
	if err != nil {
		return nil, err
	}
	live := make([]galaxy.HistoryContent, 0, len(contents))
	for _, content := range contents {
		if !content.Deleted {
			live = append(live, content)
		}
	}
	datasets := []Dataset{}
	if err = copier.Copy(&datasets, &live); err != nil {
		return nil, err
	}
	return datasets, nil
}

// DeleteDataset deletes and purges an upload
func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	historyID, err := c.uploadHistory(ctx)
	if err != nil {
		return err
	}
	return c.galaxy.DeleteDataset(ctx, historyID, id)
}

// ListReferences returns the reference genomes whose name or id contains query
func (c *Client) ListReferences(ctx context.Context, query string) ([]Reference, error) {
	genomes, err := c.galaxy.ListGenomes(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	references := []Reference{}
	for _, g := range genomes {
		if query == "" || strings.Contains(strings.ToLower(g.Name), query) || strings.Contains(strings.ToLower(g.ID), query) {
			references = append(references, Reference{ID: g.ID, Name: g.Name})
		}
	}
	return references, nil
}
