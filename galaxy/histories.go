package galaxy

import (
	"context"
	"fmt"
	"net/url"
)

// purgeQuery asks galaxy to free the disk space as well
func purgeQuery() url.Values {
	return url.Values{"purge": []string{"true"}}
}

// ListHistories returns the non-deleted histories of the user
func (c *Client) ListHistories(ctx context.Context) ([]History, error) {
	histories := []History{}
	query := url.Values{"keys": []string{"id,name,tags,deleted,purged"}}
	if err := c.get(ctx, "histories", query, &histories); err != nil {
		return nil, err
	}
	return histories, nil
}

// ShowHistory returns a history with its state details
func (c *Client) ShowHistory(ctx context.Context, id string) (*History, error) {
	history := &History{}
	if err := c.get(ctx, "histories/"+url.PathEscape(id), nil, history); err != nil {
		return nil, err
	}
	return history, nil
}

// CreateHistory ..
func (c *Client) CreateHistory(ctx context.Context, name string) (*History, error) {
	history := &History{}
	if err := c.post(ctx, "histories", map[string]string{"name": name}, history); err != nil {
		return nil, err
	}
	return history, nil
}

// TagHistory replaces the tags of a history
func (c *Client) TagHistory(ctx context.Context, id string, tags []string) (*History, error) {
	history := &History{}
	if err := c.put(ctx, "histories/"+url.PathEscape(id), map[string][]string{"tags": tags}, history); err != nil {
		return nil, err
	}
	return history, nil
}

// DeleteHistory deletes and purges a history
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	return c.delete(ctx, "histories/"+url.PathEscape(id), purgeQuery())
}

// HistoryContents lists the datasets and collections of a history
func (c *Client) HistoryContents(ctx context.Context, historyID string) ([]HistoryContent, error) {
	contents := []HistoryContent{}
	if err := c.get(ctx, fmt.Sprintf("histories/%v/contents", url.PathEscape(historyID)), nil, &contents); err != nil {
		return nil, err
	}
	return contents, nil
}

// CreateListCollection creates a list collection in a history from the given elements
func (c *Client) CreateListCollection(ctx context.Context, historyID, name string, elements []CollectionElement) (*Collection, error) {
	payload := map[string]interface{}{
		"type":                "dataset_collection",
		"collection_type":     "list",
		"name":                name,
		"element_identifiers": elements,
	}
	collection := &Collection{}
	if err := c.post(ctx, fmt.Sprintf("histories/%v/contents", url.PathEscape(historyID)), payload, collection); err != nil {
		return nil, err
	}
	return collection, nil
}
