/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend serves templates over HTTP and provides a client that
// implements storage.Gateway against that service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"certstudio/internal/document"
	"certstudio/internal/imagecache"
	applog "certstudio/internal/log"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
	"certstudio/internal/storage"
	"certstudio/internal/version"
)

// Render limits for /api/templates/:id/render.png.
const (
	DefaultRenderScale = 0.25
	MaxRenderScale     = 2.0
	MaxRenderWidth     = 4096
	imageWaitTimeout   = 10 * time.Second
)

// Options configure a Server.
type Options struct {
	Gateway  storage.Gateway
	Renderer *render.Renderer
	// Images is the renderer's image source; renders wait for it to settle.
	Images *imagecache.Cache
	Secret string
	// Now is the token clock; nil uses time.Now.
	Now func() time.Time
}

// Server is the HTTP template service.
type Server struct {
	app      *fiber.App
	gw       storage.Gateway
	renderer *render.Renderer
	images   *imagecache.Cache
	secret   string
	now      func() time.Time
	log      *slog.Logger
}

type pinger interface {
	Ping(ctx context.Context) error
}

// NewServer wires routes onto a fresh fiber app.
func NewServer(opts Options) *Server {
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.Options{Images: opts.Images, Fallbacks: placeholder.DefaultFallbacks()})
	}
	if opts.Secret == "" {
		opts.Secret = devSecret
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		gw:       opts.Gateway,
		renderer: opts.Renderer,
		images:   opts.Images,
		secret:   opts.Secret,
		now:      opts.Now,
		log:      applog.WithComponent("backend"),
	}
	s.app = fiber.New(fiber.Config{
		AppName:      "certstudio",
		ErrorHandler: s.handleError,
		BodyLimit:    16 << 20,
	})
	s.routes()
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Info("listening", slog.String("addr", addr), slog.String("version", version.String()))
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(cors.New())
	s.app.Use(s.requestLog)

	s.app.Get("/healthz", func(c fiber.Ctx) error { return c.SendString("ok") })
	s.app.Get("/readyz", s.ready)
	s.app.Get("/version", func(c fiber.Ctx) error { return c.SendString(version.String()) })
	s.app.Get("/api/schema", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(storage.SchemaJSON())
	})
	s.app.Post("/api/auth/token", s.issueToken)

	api := s.app.Group("/api/templates", s.auth)
	api.Get("/", s.list)
	api.Post("/", s.create)
	api.Get("/:id", s.get)
	api.Put("/:id", s.update)
	api.Delete("/:id", s.delete)
	api.Post("/:id/duplicate", s.duplicate)
	api.Get("/:id/render.png", s.renderPNG)
}

func (s *Server) requestLog(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	l := s.log.With(
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Duration("latency", time.Since(start)),
	)
	if err != nil {
		l.Info("request", slog.Int("status", statusFor(err)), slog.Any("err", err))
		return err
	}
	l.Info("request", slog.Int("status", c.Response().StatusCode()))
	return nil
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, storage.ErrInvalidRecord):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		s.log.Error("request failed", slog.String("path", c.Path()), slog.Any("err", err))
		msg = "internal error"
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func (s *Server) ready(c fiber.Ctx) error {
	if p, ok := s.gw.(pinger); ok {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("storage not ready")
		}
	}
	return c.SendString("ready")
}

type tokenRequest struct {
	Subject    string `json:"subject"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) issueToken(c fiber.Ctx) error {
	var req tokenRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
	}
	if req.Subject == "" {
		req.Subject = "dev"
	}
	exp := s.now().Add(clampTTL(req.TTLSeconds))
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		return err
	}
	return c.JSON(tokenResponse{Token: tok, ExpiresAt: exp.UTC().Format(time.RFC3339)})
}

func (s *Server) auth(c fiber.Ctx) error {
	h := c.Get(fiber.HeaderAuthorization)
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	sub, err := verifyToken(s.secret, strings.TrimSpace(h[len(prefix):]), s.now())
	if err != nil {
		return err
	}
	c.Locals("subject", sub)
	return c.Next()
}

func (s *Server) list(c fiber.Ctx) error {
	list, err := s.gw.List(c.Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []document.Template{}
	}
	return c.JSON(list)
}

func (s *Server) get(c fiber.Ctx) error {
	t, err := storage.Lookup(c.Context(), s.gw, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

type idResponse struct {
	ID string `json:"id"`
}

func (s *Server) create(c fiber.Ctx) error {
	t, err := storage.DecodeRecord(c.Body())
	if err != nil {
		return err
	}
	id, err := s.gw.Create(c.Context(), t)
	if err != nil {
		return err
	}
	s.log.Info("template created", slog.String("template_id", id), slog.Any("subject", c.Locals("subject")))
	return c.Status(fiber.StatusCreated).JSON(idResponse{ID: id})
}

func (s *Server) update(c fiber.Ctx) error {
	t, err := storage.DecodeRecord(c.Body())
	if err != nil {
		return err
	}
	id := c.Params("id")
	if err := s.gw.Update(c.Context(), id, t); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) delete(c fiber.Ctx) error {
	if err := s.gw.Delete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) duplicate(c fiber.Ctx) error {
	id, err := s.gw.Duplicate(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(idResponse{ID: id})
}

// renderPNG rasterizes a stored template. Query: scale or width, and the
// placeholder values name, course and date.
func (s *Server) renderPNG(c fiber.Ctx) error {
	t, err := storage.Lookup(c.Context(), s.gw, c.Params("id"))
	if err != nil {
		return err
	}
	scale := DefaultRenderScale
	if v := c.Query("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > MaxRenderScale {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("scale must be in (0, %g]", MaxRenderScale))
		}
		scale = f
	}
	if v := c.Query("width"); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil || w <= 0 || w > MaxRenderWidth {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("width must be in [1, %d]", MaxRenderWidth))
		}
		scale = render.ThumbnailScale(t.Doc, w)
	}
	if s.images != nil {
		ctx, cancel := context.WithTimeout(c.Context(), imageWaitTimeout)
		err := s.images.Wait(ctx, render.Sources(t.Doc)...)
		cancel()
		if err != nil {
			s.log.Warn("images not ready; rendering without them", slog.String("template_id", t.ID), slog.Any("err", err))
		}
	}
	pc := placeholder.Context{Name: c.Query("name"), Course: c.Query("course"), Date: c.Query("date")}
	img := s.renderer.Draw(t.Doc, pc, scale)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}
