/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package imagecache decodes image sources (data URIs, files, http(s) URLs)
// off the render path. A render asks for a source; if it has not finished
// decoding the render skips it and a later render picks it up.
package imagecache

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	applog "certstudio/internal/log"
)

// State of a cache entry.
type State int

const (
	Pending State = iota
	Ready
	Failed
)

// Options configure a Cache.
type Options struct {
	// HTTPClient fetches http(s) sources; nil uses a client with a 15 s timeout.
	HTTPClient *http.Client
	// MaxBytes bounds a single source; 0 means 20 MiB.
	MaxBytes int64
	// BaseDir resolves relative file paths.
	BaseDir string
	// Workers bounds concurrent decodes; 0 means 4.
	Workers int
	// OnReady is called from the decoding goroutine after a source settles.
	OnReady func(src string, st State)
}

type entry struct {
	state State
	img   image.Image
	err   error
	done  chan struct{}
}

// Cache is safe for concurrent use.
type Cache struct {
	opts Options
	sem  chan struct{}

	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty cache.
func New(opts Options) *Cache {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 << 20
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Cache{opts: opts, sem: make(chan struct{}, opts.Workers), entries: map[string]*entry{}}
}

// Get returns the decoded image when ready. Unknown sources are queued for
// decoding and reported as not ready.
func (c *Cache) Get(src string) (image.Image, bool) {
	if c == nil || strings.TrimSpace(src) == "" {
		return nil, false
	}
	e := c.request(src)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.state == Ready {
		return e.img, true
	}
	return nil, false
}

// Status reports the state of src and the decode error, if any.
func (c *Cache) Status(src string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[src]
	if !ok {
		return Pending, nil
	}
	return e.state, e.err
}

// Request starts decoding src if it is not already known.
func (c *Cache) Request(src string) {
	if strings.TrimSpace(src) != "" {
		c.request(src)
	}
}

// Wait blocks until every source has settled or ctx ends. Failed decodes are
// not errors here; the renderer treats them as absent.
func (c *Cache) Wait(ctx context.Context, srcs ...string) error {
	for _, s := range srcs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		e := c.request(s)
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Forget drops src so the next Get decodes it again.
func (c *Cache) Forget(src string) {
	c.mu.Lock()
	delete(c.entries, src)
	c.mu.Unlock()
}

func (c *Cache) request(src string) *entry {
	c.mu.Lock()
	if e, ok := c.entries[src]; ok {
		c.mu.Unlock()
		return e
	}
	e := &entry{state: Pending, done: make(chan struct{})}
	c.entries[src] = e
	c.mu.Unlock()
	go c.decode(src, e)
	return e
}

func (c *Cache) decode(src string, e *entry) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	img, err := c.load(src)
	c.mu.Lock()
	if err != nil {
		e.state, e.err = Failed, err
	} else {
		e.state, e.img = Ready, img
	}
	st := e.state
	c.mu.Unlock()
	if err != nil {
		applog.WithComponent("imagecache").Warn("image decode failed", slog.String("src", abbreviate(src)), slog.Any("err", err))
	}
	if c.opts.OnReady != nil {
		c.opts.OnReady(src, st)
	}
	close(e.done)
}

func (c *Cache) load(src string) (image.Image, error) {
	data, err := c.fetch(src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (c *Cache) fetch(src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return DecodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		resp, err := c.opts.HTTPClient.Get(src)
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("fetch image: http %d", resp.StatusCode)
		}
		return c.readLimited(resp.Body)
	default:
		p := strings.TrimPrefix(src, "file://")
		if !filepath.IsAbs(p) && c.opts.BaseDir != "" {
			p = filepath.Join(c.opts.BaseDir, p)
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		return c.readLimited(f)
	}
}

func (c *Cache) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > c.opts.MaxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", c.opts.MaxBytes)
	}
	return data, nil
}

// DecodeDataURI returns the payload of a data: URI (base64 or percent-encoded).
func DecodeDataURI(s string) ([]byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, errors.New("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("data uri without payload")
	}
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
			return b, nil
		}
		b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("data uri base64: %w", err)
		}
		return b, nil
	}
	un, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data uri: %w", err)
	}
	return []byte(un), nil
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func abbreviate(src string) string {
	if len(src) > 64 {
		return src[:61] + "..."
	}
	return src
}
