// ABOUTME: Per-domain REST calls: chats, memory, API keys and the HTML document
// ABOUTME: Validates that each response carries the field its domain needs

package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/flareos/flareforge/internal/model"
)

// ListThreads fetches every chat thread of device.
func (c *Client) ListThreads(ctx context.Context, device string) ([]model.Thread, error) {
	path := "/api/chats/" + url.PathEscape(device)
	var resp model.ThreadsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Threads == nil {
		return nil, malformed(http.MethodGet, path, "threads")
	}
	return *resp.Threads, nil
}

// SendMessage posts a chat message and returns the updated thread.
func (c *Client) SendMessage(ctx context.Context, req model.SendRequest) (model.Thread, error) {
	const path = "/api/chats/send"
	var resp model.ThreadResponse
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return model.Thread{}, err
	}
	if resp.Thread == nil || resp.Thread.ID == "" {
		return model.Thread{}, malformed(http.MethodPost, path, "thread")
	}
	return *resp.Thread, nil
}

// DeleteThread removes a chat thread.
func (c *Client) DeleteThread(ctx context.Context, device, id string) error {
	path := "/api/chats/" + url.PathEscape(device) + "/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListMemory fetches every memory entry of device.
func (c *Client) ListMemory(ctx context.Context, device string) ([]model.MemoryItem, error) {
	path := "/api/memory/" + url.PathEscape(device)
	var resp model.MemoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return nil, malformed(http.MethodGet, path, "items")
	}
	return *resp.Items, nil
}

// PutMemory writes a memory entry and returns the stored item.
func (c *Client) PutMemory(ctx context.Context, device, key, value string) (model.MemoryItem, error) {
	const path = "/api/memory"
	var resp model.MemoryItemResponse
	req := model.MemoryRequest{Device: device, Key: key, Value: value}
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return model.MemoryItem{}, err
	}
	if resp.Item == nil || resp.Item.Key == "" {
		return model.MemoryItem{}, malformed(http.MethodPost, path, "item")
	}
	return *resp.Item, nil
}

// DeleteMemory removes a memory entry.
func (c *Client) DeleteMemory(ctx context.Context, device, key string) error {
	path := "/api/memory/" + url.PathEscape(device) + "/" + url.PathEscape(key)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetKeys fetches the provider secrets of device.
func (c *Client) GetKeys(ctx context.Context, device string) (map[string]string, error) {
	path := "/api/keys/" + url.PathEscape(device)
	var resp model.KeysResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Providers == nil {
		return nil, malformed(http.MethodGet, path, "providers")
	}
	return resp.Providers, nil
}

// PutKeys replaces the provider secrets of device. When the server echoes
// the stored map it is returned; otherwise the submitted map is.
func (c *Client) PutKeys(ctx context.Context, device string, providers map[string]string) (map[string]string, error) {
	var resp model.KeysResponse
	req := model.KeysRequest{Device: device, Providers: providers}
	if err := c.do(ctx, http.MethodPost, "/api/keys", req, &resp); err != nil {
		return nil, err
	}
	if resp.Providers == nil {
		return providers, nil
	}
	return resp.Providers, nil
}

// GetCode fetches the HTML document of device.
func (c *Client) GetCode(ctx context.Context, device string) (string, error) {
	path := "/api/code/" + url.PathEscape(device)
	var resp model.CodeResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if resp.HTML == nil {
		return "", malformed(http.MethodGet, path, "html")
	}
	return *resp.HTML, nil
}

// PutCode stores the HTML document of device.
func (c *Client) PutCode(ctx context.Context, device, html string) (string, error) {
	var resp model.CodeResponse
	req := model.CodeRequest{Device: device, HTML: html}
	if err := c.do(ctx, http.MethodPost, "/api/code", req, &resp); err != nil {
		return "", err
	}
	if resp.HTML == nil {
		return html, nil
	}
	return *resp.HTML, nil
}
