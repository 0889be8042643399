package galaxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

const (
	uploadToolID = "upload1"

	// AutoDetect lets galaxy sniff the datatype of an upload
	AutoDetect = "auto"
)

// UploadFile uploads a local file into a history with the upload tool
// fileType is a galaxy datatype, or AutoDetect
func (c *Client) UploadFile(ctx context.Context, historyID, path, name, fileType string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fileType == "" {
		fileType = AutoDetect
	}
	inputs, err := json.Marshal(map[string]string{
		"files_0|NAME":   name,
		"files_0|type":   "upload_dataset",
		"file_type":      fileType,
		"dbkey":          "?",
		"to_posix_lines": "Yes",
	})
	if err != nil {
		return nil, fmt.Errorf("unable to marshal JSON: %w", err)
	}

	// the file is buffered so that the request can carry a content length
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := [][2]string{
		{"tool_id", uploadToolID},
		{"history_id", historyID},
		{"inputs", string(inputs)},
	}
	for _, field := range fields {
		if err = w.WriteField(field[0], field[1]); err != nil {
			return nil, err
		}
	}
	part, err := w.CreateFormFile("files_0|file_data", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("unable to read %v: %w", path, err)
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "tools", nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	uploaded := &UploadResponse{}
	if err = json.NewDecoder(resp.Body).Decode(uploaded); err != nil {
		return nil, fmt.Errorf("POST tools: unable to unmarshal JSON: %w", err)
	}
	if len(uploaded.Outputs) == 0 {
		return nil, fmt.Errorf("upload of %v returned no dataset", path)
	}
	return &uploaded.Outputs[0], nil
}

// ShowDataset ..
func (c *Client) ShowDataset(ctx context.Context, id string) (*Dataset, error) {
	dataset := &Dataset{}
	if err := c.get(ctx, "datasets/"+url.PathEscape(id), nil, dataset); err != nil {
		return nil, err
	}
	return dataset, nil
}

// DeleteDataset deletes and purges a dataset from a history
func (c *Client) DeleteDataset(ctx context.Context, historyID, id string) error {
	path := fmt.Sprintf("histories/%v/contents/%v", url.PathEscape(historyID), url.PathEscape(id))
	return c.delete(ctx, path, purgeQuery())
}

// DownloadDataset streams the content of a dataset to w
func (c *Client) DownloadDataset(ctx context.Context, id, ext string, w io.Writer) (int64, error) {
	query := url.Values{}
	if ext != "" {
		query.Set("to_ext", ext)
	}
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("datasets/%v/display", url.PathEscape(id)), query, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Del("Accept")
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download dataset %v: %w", id, err)
	}
	return n, nil
}
