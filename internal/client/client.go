// Package client is a Go client for the collections REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTimeout = 10 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client. WithTimeout applied
// after it changes the given client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var collections []Collection
	err := c.do(ctx, http.MethodGet, "/collections", nil, &collections)
	return collections, err
}

func (c *Client) CreateCollection(ctx context.Context, req CreateCollectionRequest) (*Collection, error) {
	var collection Collection
	err := c.do(ctx, http.MethodPost, "/collections", req, &collection)
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

func (c *Client) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	var collection Collection
	err := c.do(ctx, http.MethodGet, collectionPath(id), nil, &collection)
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

func (c *Client) UpdateCollection(ctx context.Context, id int64, req UpdateCollectionRequest) (*Collection, error) {
	var collection Collection
	err := c.do(ctx, http.MethodPatch, collectionPath(id), req, &collection)
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

func (c *Client) DeleteCollection(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, collectionPath(id), nil, nil)
}

func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPost, "/tasks", req, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) GetTask(ctx context.Context, id int64) (*Task, error) {
	var task Task
	err := c.do(ctx, http.MethodGet, taskPath(id), nil, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id int64, req UpdateTaskRequest) (*Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPatch, taskPath(id), req, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

// ListTasksByCollection returns the top-level tasks of the collection. A
// non-nil completed filters them by completion state.
func (c *Client) ListTasksByCollection(ctx context.Context, collectionID int64, completed *bool) ([]Task, error) {
	path := "/tasks/collection/" + strconv.FormatInt(collectionID, 10)
	if completed != nil {
		path += "?" + url.Values{"completed": {strconv.FormatBool(*completed)}}.Encode()
	}

	var tasks []Task
	err := c.do(ctx, http.MethodGet, path, nil, &tasks)
	return tasks, err
}

func (c *Client) CreateSubtask(ctx context.Context, parentID int64, req CreateSubtaskRequest) (*Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPost, taskPath(parentID)+"/subtasks", req, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) ListSubtasks(ctx context.Context, parentID int64) ([]Task, error) {
	var tasks []Task
	err := c.do(ctx, http.MethodGet, taskPath(parentID)+"/subtasks", nil, &tasks)
	return tasks, err
}

func (c *Client) UpdateSubtask(ctx context.Context, parentID, subtaskID int64, req UpdateTaskRequest) (*Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPatch, subtaskPath(parentID, subtaskID), req, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteSubtask(ctx context.Context, parentID, subtaskID int64) error {
	return c.do(ctx, http.MethodDelete, subtaskPath(parentID, subtaskID), nil, nil)
}

// Health pings the server's storage through GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func collectionPath(id int64) string {
	return "/collections/" + strconv.FormatInt(id, 10)
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}

func subtaskPath(parentID, subtaskID int64) string {
	return taskPath(parentID) + "/subtasks/" + strconv.FormatInt(subtaskID, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Msg("request failed")
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return &Error{
			Kind:       KindUnexpected,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{
		Kind:       kindOf(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	var body errorBody
	err := json.NewDecoder(resp.Body).Decode(&body)
	if err == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
