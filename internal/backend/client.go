/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"certstudio/internal/config"
	"certstudio/internal/document"
	"certstudio/internal/placeholder"
	"certstudio/internal/storage"
)

// Client talks to the template service. It implements storage.Gateway, so the
// editor can use a remote store exactly like a local one.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

var _ storage.Gateway = (*Client)(nil)

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientFromConfig applies the backend section of cfg.
func NewClientFromConfig(cfg config.BackendConfig, token string) *Client {
	c := NewClient(cfg.BaseURL, token)
	if cfg.TimeoutMs > 0 {
		c.client.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	if cfg.TLSInsecure {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
		c.client.Transport = tr
	}
	return c
}

// do sends body as JSON (when non-nil) and decodes the response into dest
// (when non-nil). Status codes map onto the gateway's sentinel errors.
func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	raw, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, u.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}
	msg := resp.Status
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		msg = env.Error
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("server %s %s: %s: %w", method, u.Path, msg, storage.ErrNotFound)
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("server %s %s: %s: %w", method, u.Path, msg, ErrUnauthorized)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("server %s %s: %s: %w", method, u.Path, msg, storage.ErrInvalidRecord)
	default:
		return nil, fmt.Errorf("server %s %s: %s", method, u.Path, msg)
	}
}

func templatePath(id string) string { return "/api/templates/" + url.PathEscape(id) }

// List returns every template, oldest first.
func (c *Client) List(ctx context.Context) ([]document.Template, error) {
	var list []document.Template
	if err := c.do(ctx, http.MethodGet, "/api/templates", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Get fetches one template.
func (c *Client) Get(ctx context.Context, id string) (document.Template, error) {
	var t document.Template
	err := c.do(ctx, http.MethodGet, templatePath(id), nil, &t)
	return t, err
}

// Create stores t and returns the id assigned by the server.
func (c *Client) Create(ctx context.Context, t document.Template) (string, error) {
	var res idResponse
	if err := c.do(ctx, http.MethodPost, "/api/templates", t, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// Update replaces template id.
func (c *Client) Update(ctx context.Context, id string, t document.Template) error {
	return c.do(ctx, http.MethodPut, templatePath(id), t, nil)
}

// Delete removes template id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, templatePath(id), nil, nil)
}

// Duplicate copies template id on the server.
func (c *Client) Duplicate(ctx context.Context, id string) (string, error) {
	var res idResponse
	if err := c.do(ctx, http.MethodPost, templatePath(id)+"/duplicate", nil, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// Close drops idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// RequestToken asks the server for a bearer token and stores it on c.
func (c *Client) RequestToken(ctx context.Context, subject string, ttl time.Duration) (time.Time, error) {
	var res tokenResponse
	req := tokenRequest{Subject: subject, TTLSeconds: int64(ttl / time.Second)}
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", req, &res); err != nil {
		return time.Time{}, err
	}
	exp, err := time.Parse(time.RFC3339, res.ExpiresAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiry: %w", err)
	}
	c.Token = res.Token
	return exp, nil
}

// RenderPNG returns the server-side rendering of template id at scale.
func (c *Client) RenderPNG(ctx context.Context, id string, pc placeholder.Context, scale float64) ([]byte, error) {
	q := url.Values{}
	q.Set("scale", strconv.FormatFloat(scale, 'f', -1, 64))
	if pc.Name != "" {
		q.Set("name", pc.Name)
	}
	if pc.Course != "" {
		q.Set("course", pc.Course)
	}
	if pc.Date != "" {
		q.Set("date", pc.Date)
	}
	return c.send(ctx, http.MethodGet, templatePath(id)+"/render.png?"+q.Encode(), nil)
}

// Ping checks /readyz.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(ctx, http.MethodGet, "/readyz", nil)
	return err
}

// OpenGateway returns the gateway selected by cfg.Storage.Kind, using a Client
// for "http" and the local stores otherwise.
func OpenGateway(ctx context.Context, cfg config.AppConfig, token string) (storage.Gateway, error) {
	if cfg.Storage.Kind == "http" {
		return NewClientFromConfig(cfg.Backend, token), nil
	}
	return storage.Open(ctx, cfg)
}
