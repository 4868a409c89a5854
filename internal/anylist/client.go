// Package anylist implements the HTTP client of the AnyList server API.
//
// Every operation issues a single request and reports the HTTP status code
// to the caller. A status other than 200 (or 304 for the idempotent add,
// remove and check operations) is logged and the payload defaults to empty.
// Nothing is retried.
package anylist

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// ServerPort is the port the supervised binary server listens on.
const ServerPort = "28597"

// ErrServerNotRunning is returned when no server address is configured and
// the supervised binary server is not available.
var ErrServerNotRunning = errors.New("binary server is not running")

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BinaryServer reports whether the supervised binary server is running.
type BinaryServer interface {
	Available() bool
}

// Client is used for communicating with an AnyList server.
type Client struct {
	logger      *slog.Logger
	http        HTTPClient
	serverAddr  string
	defaultList string
	binary      BinaryServer
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient makes the client send requests through hc instead of
// [http.DefaultClient].
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger of the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client. serverAddr is the base URL of an externally managed
// AnyList server and may be empty when the binary server is supervised
// locally. defaultList is used whenever a caller does not name a list.
func New(serverAddr, defaultList string, opts ...Option) *Client {
	c := &Client{
		serverAddr:  strings.TrimSuffix(serverAddr, "/"),
		defaultList: defaultList,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = cmp.Or(c.logger, slog.Default())
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c
}

// SetBinaryServer attaches the supervised binary server. It must be called
// before the client is shared between goroutines.
func (c *Client) SetBinaryServer(s BinaryServer) {
	c.binary = s
}

// ServerAddress returns the base URL of the AnyList server.
func (c *Client) ServerAddress() (string, error) {
	if c.serverAddr != "" {
		return c.serverAddr, nil
	}
	if c.binary != nil && c.binary.Available() {
		return "http://127.0.0.1:" + ServerPort, nil
	}
	return "", ErrServerNotRunning
}

// ServerURL returns the URL of the specified API endpoint.
func (c *Client) ServerURL(endpoint string) (string, error) {
	addr, err := c.ServerAddress()
	if err != nil {
		return "", err
	}
	return addr + "/" + endpoint, nil
}

// ListName returns name if it is non-empty, otherwise the default list,
// which may itself be empty.
func (c *Client) ListName(name string) string {
	return cmp.Or(name, c.defaultList)
}

// AddItem adds an item to a list. The item starts unchecked regardless of
// updates.
func (c *Client) AddItem(ctx context.Context, name string, updates *ItemUpdates, list string) (int, error) {
	body := map[string]any{
		AttrName: strings.TrimSpace(name),
		AttrList: c.ListName(list),
	}
	updates.Apply(body)
	// The server expects the literal string here.
	body[AttrChecked] = "False"

	status, err := c.post(ctx, "add", body)
	if err != nil {
		return status, fmt.Errorf("cannot add item: %w", err)
	}
	if !idempotentOK(status) {
		c.logger.ErrorContext(ctx, "failed to add item", "code", status)
	}
	return status, nil
}

// RemoveItemByName removes the item with the specified name from a list.
func (c *Client) RemoveItemByName(ctx context.Context, name, list string) (int, error) {
	body := map[string]any{
		AttrName: strings.TrimSpace(name),
		AttrList: c.ListName(list),
	}
	return c.remove(ctx, body)
}

// RemoveItemByID removes the item with the specified ID from a list.
func (c *Client) RemoveItemByID(ctx context.Context, id, list string) (int, error) {
	body := map[string]any{
		AttrID:   id,
		AttrList: c.ListName(list),
	}
	return c.remove(ctx, body)
}

func (c *Client) remove(ctx context.Context, body map[string]any) (int, error) {
	status, err := c.post(ctx, "remove", body)
	if err != nil {
		return status, fmt.Errorf("cannot remove item: %w", err)
	}
	if !idempotentOK(status) {
		c.logger.ErrorContext(ctx, "failed to remove item", "code", status)
	}
	return status, nil
}

// UpdateItem applies updates to the item with the specified ID.
func (c *Client) UpdateItem(ctx context.Context, id string, updates *ItemUpdates, list string) (int, error) {
	body := map[string]any{
		AttrID:   id,
		AttrList: c.ListName(list),
	}
	updates.Apply(body)

	status, err := c.post(ctx, "update", body)
	if err != nil {
		return status, fmt.Errorf("cannot update item: %w", err)
	}
	if status != http.StatusOK {
		c.logger.ErrorContext(ctx, "failed to update item", "code", status)
	}
	return status, nil
}

// CheckItem sets the checked state of the item with the specified name.
func (c *Client) CheckItem(ctx context.Context, name, list string, checked bool) (int, error) {
	body := map[string]any{
		AttrName:    strings.TrimSpace(name),
		AttrList:    c.ListName(list),
		AttrChecked: checked,
	}
	status, err := c.post(ctx, "check", body)
	if err != nil {
		return status, fmt.Errorf("cannot update item status: %w", err)
	}
	if !idempotentOK(status) {
		c.logger.ErrorContext(ctx, "failed to update item status", "code", status)
	}
	return status, nil
}

// GetDetailedItems retrieves all items of a list. The returned slice is
// empty unless the status is 200.
func (c *Client) GetDetailedItems(ctx context.Context, list string) (int, []Item, error) {
	var query url.Values
	if name := c.ListName(list); name != "" {
		query = url.Values{AttrList: {name}}
	}
	var resp struct {
		Items []Item `json:"items"`
	}
	status, err := c.get(ctx, "items", query, &resp)
	if err != nil {
		return status, []Item{}, fmt.Errorf("cannot get items: %w", err)
	}
	if status != http.StatusOK {
		c.logger.ErrorContext(ctx, "failed to get items", "code", status)
		return status, []Item{}, nil
	}
	if resp.Items == nil {
		resp.Items = []Item{}
	}
	return status, resp.Items, nil
}

// GetItems retrieves the names of the unchecked items of a list.
func (c *Client) GetItems(ctx context.Context, list string) (int, []string, error) {
	status, items, err := c.GetDetailedItems(ctx, list)
	if err != nil || status != http.StatusOK {
		return status, []string{}, err
	}
	return status, names(items, false), nil
}

// GetAllItems retrieves the names of all items of a list, partitioned by
// their checked state.
func (c *Client) GetAllItems(ctx context.Context, list string) (int, AllItems, error) {
	all := AllItems{Unchecked: []string{}, Checked: []string{}}
	status, items, err := c.GetDetailedItems(ctx, list)
	if err != nil || status != http.StatusOK {
		return status, all, err
	}
	all.Unchecked = names(items, false)
	all.Checked = names(items, true)
	return status, all, nil
}

// GetLists retrieves all lists of the account.
func (c *Client) GetLists(ctx context.Context) (int, []List, error) {
	var resp struct {
		Lists []List `json:"lists"`
	}
	status, err := c.get(ctx, "lists", nil, &resp)
	if err != nil {
		return status, []List{}, fmt.Errorf("cannot get lists: %w", err)
	}
	if status != http.StatusOK {
		c.logger.ErrorContext(ctx, "failed to get lists", "code", status)
		return status, []List{}, nil
	}
	if resp.Lists == nil {
		resp.Lists = []List{}
	}
	return status, resp.Lists, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body map[string]any) (int, error) {
	u, err := c.ServerURL(endpoint)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) (int, error) {
	u, err := c.ServerURL(endpoint)
	if err != nil {
		return 0, err
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

// do sends req and decodes a 200 response into out, if out is non-nil.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("cannot close response body", "cause", err)
		}
	}()
	if resp.StatusCode != http.StatusOK || out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, fmt.Errorf("invalid response from %s: %w", req.URL.Path, err)
	}
	return resp.StatusCode, nil
}

func idempotentOK(status int) bool {
	return status == http.StatusOK || status == http.StatusNotModified
}
