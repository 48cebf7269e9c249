// Package metadata implements A5, the client for the metadata collaborator
// HTTP surface (spec.md §6): "called by the core, not defined by it" —
// GET /api/canvas/{id} (name, moderation, effective permission) and
// GET /api/canvas/{id}/users (active roster).
//
// Grounded on the teacher's internal/bots.HTTPLauncher: a small client
// struct wrapping an injectable *http.Client and a base URL, building
// context-aware requests inline and decoding a narrow JSON response shape.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"canvasboard/broker/internal/permission"
)

// CanvasInfo is the decoded response of GET /api/canvas/{id}.
type CanvasInfo struct {
	Name             string             `json:"name"`
	Moderated        bool               `json:"is_moderated"`
	EffectivePermission permission.Value `json:"your_permission"`
}

// User is one entry of the active roster returned by
// GET /api/canvas/{id}/users.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}

// Client calls the metadata collaborator over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
}

// New wires an HTTP client to the metadata collaborator's base URL. client
// defaults to http.DefaultClient when nil, matching HTTPLauncher's
// fallback.
func New(baseURL string, client *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("metadata base URL must not be empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{http: client, baseURL: baseURL}, nil
}

// CanvasInfo fetches GET /api/canvas/{id}.
func (c *Client) CanvasInfo(ctx context.Context, canvasID string) (CanvasInfo, error) {
	var info CanvasInfo
	if err := c.get(ctx, canvasPath(c.baseURL, canvasID), &info); err != nil {
		return CanvasInfo{}, err
	}
	if !info.EffectivePermission.Valid() {
		return CanvasInfo{}, fmt.Errorf("metadata collaborator returned invalid permission %q", info.EffectivePermission)
	}
	return info, nil
}

// Users fetches GET /api/canvas/{id}/users.
func (c *Client) Users(ctx context.Context, canvasID string) ([]User, error) {
	var users []User
	if err := c.get(ctx, canvasPath(c.baseURL, canvasID)+"/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CanvasModerated implements hub.MetadataSource.
func (c *Client) CanvasModerated(ctx context.Context, canvasID string) (bool, error) {
	info, err := c.CanvasInfo(ctx, canvasID)
	if err != nil {
		return false, err
	}
	return info.Moderated, nil
}

// Permission implements hub.MetadataSource. identityID is not sent to the
// metadata collaborator: the result is the `your_permission` field for the
// session this Client's requests carry, whichever identity is asked about.
func (c *Client) Permission(ctx context.Context, canvasID, identityID string) (permission.Value, error) {
	info, err := c.CanvasInfo(ctx, canvasID)
	if err != nil {
		return "", err
	}
	return info.EffectivePermission, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("metadata collaborator responded with status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode metadata response: %w", err)
	}
	return nil
}

func canvasPath(baseURL, canvasID string) string {
	return baseURL + "/api/canvas/" + url.PathEscape(canvasID)
}
