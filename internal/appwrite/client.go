// Package appwrite implements todo.Store over the Appwrite Databases REST
// API. One Client addresses one database and collection.
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"todosync/internal/todo"
)

const (
	// PageSize is the number of documents requested per list call.
	PageSize = 100

	// uniqueID asks the server to assign the document ID.
	uniqueID = "unique()"
)

type Options struct {
	Endpoint     string // e.g. https://cloud.appwrite.io/v1
	Project      string
	APIKey       string // optional
	DatabaseID   string
	CollectionID string
	Timeout      time.Duration
}

type Client struct {
	base       string
	project    string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
}

func New(opts Options, logger *log.Logger) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("appwrite endpoint is empty")
	}
	if opts.DatabaseID == "" || opts.CollectionID == "" {
		return nil, errors.New("appwrite database and collection ids are required")
	}
	if _, err := url.Parse(opts.Endpoint); err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := fmt.Sprintf("%s/databases/%s/collections/%s/documents",
		strings.TrimRight(opts.Endpoint, "/"),
		url.PathEscape(opts.DatabaseID),
		url.PathEscape(opts.CollectionID))
	return &Client{
		base:       base,
		project:    opts.Project,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithPrefix("appwrite"),
	}, nil
}

// document is the wire form of a todo. Appwrite prefixes system attributes
// with '$'.
type document struct {
	ID        string `json:"$id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

func (d document) todo() todo.Todo {
	return todo.Todo{ID: d.ID, Text: d.Text, Completed: d.Completed}
}

type documentList struct {
	Total     int        `json:"total"`
	Documents []document `json:"documents"`
}

type createRequest struct {
	DocumentID string         `json:"documentId"`
	Data       map[string]any `json:"data"`
}

type updateRequest struct {
	Data map[string]any `json:"data"`
}

// List pages through the whole collection.
func (c *Client) List(ctx context.Context) ([]todo.Todo, error) {
	todos := []todo.Todo{}
	for offset := 0; ; {
		q := url.Values{}
		q.Add("queries[]", query("limit", PageSize))
		q.Add("queries[]", query("offset", offset))

		var page documentList
		if err := c.do(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for _, d := range page.Documents {
			todos = append(todos, d.todo())
		}
		offset += len(page.Documents)
		if len(page.Documents) == 0 || offset >= page.Total {
			return todos, nil
		}
	}
}

func (c *Client) Create(ctx context.Context, text string, completed bool) (todo.Todo, error) {
	body := createRequest{
		DocumentID: uniqueID,
		Data:       map[string]any{"text": text, "completed": completed},
	}
	var d document
	if err := c.do(ctx, http.MethodPost, c.base, body, &d); err != nil {
		return todo.Todo{}, fmt.Errorf("create document: %w", err)
	}
	return d.todo(), nil
}

func (c *Client) Update(ctx context.Context, id string, p todo.Patch) (todo.Todo, error) {
	var d document
	if err := c.do(ctx, http.MethodPatch, c.documentURL(id), updateRequest{Data: p.Fields()}, &d); err != nil {
		return todo.Todo{}, fmt.Errorf("update document %s: %w", id, err)
	}
	return d.todo(), nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, c.documentURL(id), nil, nil); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) documentURL(id string) string {
	return c.base + "/" + url.PathEscape(id)
}

// do sends one request and decodes a 2xx body into out. Non-2xx responses
// become *APIError.
func (c *Client) do(ctx context.Context, method, reqURL string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}

	correlationID := uuid.NewString()
	req.Header.Set("X-Correlation-ID", correlationID)
	req.Header.Set("X-Appwrite-Project", c.project)
	if c.apiKey != "" {
		req.Header.Set("X-Appwrite-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := c.logger.With("method", method, "correlationId", correlationID)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("HTTP request failed", "err", err, "duration", time.Since(start))
		return err
	}
	defer resp.Body.Close()
	logger.Debug("HTTP request completed", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func query(method string, value int) string {
	b, _ := json.Marshal(struct {
		Method string `json:"method"`
		Values []int  `json:"values"`
	}{method, []int{value}})
	return string(b)
}
