// Package galaxy is a small client for the parts of the Galaxy REST API
// that IslandCompare needs. Each method performs one authenticated request;
// nothing is retried.
package galaxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brinkmanlab/islandcompare-cli/logging"
)

const apiKeyHeader = "x-api-key"

// Config is passed to NewClient
type Config struct {
	Host       string
	Key        string
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Client talks to one galaxy instance with one API key
type Client struct {
	base       *url.URL
	key        string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient validates the config and returns a client
func NewClient(conf Config) (*Client, error) {
	if conf.Host == "" {
		return nil, fmt.Errorf("missing galaxy host")
	}
	base, err := url.Parse(conf.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid galaxy host %q: %w", conf.Host, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid galaxy host %q: scheme must be http or https", conf.Host)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/api/"

	c := &Client{
		base:       base,
		key:        conf.Key,
		httpClient: conf.HTTPClient,
		log:        conf.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	return c, nil
}

// endpoint builds the absolute url of an api path
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// newRequest adds the auth header to a request against the api
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends the request and returns the response if the status is a success
// the caller owns the response body
func (c *Client) do(req *http.Request) (*http.Response, error) {
	path := strings.TrimPrefix(req.URL.Path, c.base.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v %v: %w", req.Method, path, err)
	}
	c.log.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("galaxy request")

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%v %v: HTTP status %d: unable to read response body: %w", req.Method, path, resp.StatusCode, err)
		}
		return nil, remoteError(req.Method, path, resp.StatusCode, b)
	}
	return resp, nil
}

// call sends a json request and decodes the json response into out (if not nil)
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable to marshal JSON: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%v %v: unable to read response body: %w", method, path, err)
	}
	if out == nil || len(b) == 0 {
		return nil
	}
	if err = json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%v %v: unable to unmarshal JSON: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.call(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	return c.call(ctx, http.MethodPost, path, nil, in, out)
}

func (c *Client) put(ctx context.Context, path string, in, out interface{}) error {
	return c.call(ctx, http.MethodPut, path, nil, in, out)
}

func (c *Client) delete(ctx context.Context, path string, query url.Values) error {
	return c.call(ctx, http.MethodDelete, path, query, nil, nil)
}
