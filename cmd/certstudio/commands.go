/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"certstudio/internal/backend"
	"certstudio/internal/config"
	"certstudio/internal/crash"
	"certstudio/internal/document"
	"certstudio/internal/export"
	"certstudio/internal/imagecache"
	applog "certstudio/internal/log"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
	"certstudio/internal/storage"
	"certstudio/internal/ui"
	"certstudio/internal/version"
)

// imageWait bounds how long a render waits for referenced images to decode.
const imageWait = 15 * time.Second

// cli carries what every command needs.
type cli struct {
	cfg    config.AppConfig
	token  string
	out    io.Writer
	errOut io.Writer
	// gateway replaces the configured storage when set.
	gateway storage.Gateway
}

type command func(ctx context.Context, c *cli, args []string) error

var commands map[string]command

func init() {
	commands = map[string]command{
		"version":   cmdVersion,
		"--version": cmdVersion,
		"-v":        cmdVersion,
		"help":      func(_ context.Context, c *cli, _ []string) error { usage(c.out); return nil },
		"list":      cmdList,
		"new":       cmdNew,
		"show":      cmdShow,
		"import":    cmdImport,
		"validate":  cmdValidate,
		"render":    cmdRender,
		"thumbnail": cmdThumbnail,
		"preview":   cmdPreview,
		"export":    cmdExport,
		"merge":     cmdMerge,
		"duplicate": cmdDuplicate,
		"delete":    cmdDelete,
		"restore":   cmdRestore,
		"serve":     cmdServe,
		"login":     cmdLogin,
		"logout":    cmdLogout,
		"ui":        cmdUI,
	}
}

func usageErr(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

// parseArgs parses flags that may appear anywhere among the positional
// arguments and returns the positionals in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	fs.SetOutput(io.Discard)
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, usageErr("%s: %v", fs.Name(), err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// contextFlags registers --name, --course and --date on fs.
func contextFlags(fs *flag.FlagSet) *placeholder.Context {
	pc := &placeholder.Context{}
	fs.StringVar(&pc.Name, "name", "", "recipient name")
	fs.StringVar(&pc.Course, "course", "", "course name")
	fs.StringVar(&pc.Date, "date", "", "completion date")
	return pc
}

func (c *cli) open(ctx context.Context) (storage.Gateway, func(), error) {
	if c.gateway != nil {
		return c.gateway, func() {}, nil
	}
	gw, err := backend.OpenGateway(ctx, c.cfg, c.token)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return gw, func() {
		if err := gw.Close(); err != nil {
			applog.WithComponent("cli").Warn("close storage", slog.Any("err", err))
		}
	}, nil
}

func (c *cli) renderer() (*render.Renderer, *imagecache.Cache) {
	return render.FromConfig(c.cfg.Render, c.cfg.ResolvedDataDir(), nil)
}

// load fetches id and returns it with a renderer whose images have settled.
func (c *cli) load(ctx context.Context, id string) (document.Template, *render.Renderer, error) {
	gw, done, err := c.open(ctx)
	if err != nil {
		return document.Template{}, nil, err
	}
	defer done()
	t, err := storage.Lookup(ctx, gw, id)
	if err != nil {
		return document.Template{}, nil, err
	}
	r, images := c.renderer()
	wctx, cancel := context.WithTimeout(ctx, imageWait)
	defer cancel()
	if err := images.Wait(wctx, render.Sources(t.Doc)...); err != nil {
		applog.WithComponent("cli").Warn("images not ready", slog.Any("err", err))
	}
	return t, r, nil
}

func cmdVersion(_ context.Context, c *cli, _ []string) error {
	fmt.Fprintln(c.out, "CertStudio")
	fmt.Fprintln(c.out, version.String())
	return nil
}

func cmdList(ctx context.Context, c *cli, _ []string) error {
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	list, err := gw.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tELEMENTS\tUPDATED")
	for _, t := range list {
		n := 0
		if t.Doc != nil {
			n = t.Doc.Len()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.ID, t.Name, n, t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func cmdNew(ctx context.Context, c *cli, args []string) error {
	if len(args) < 1 {
		return usageErr("new requires <name>")
	}
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	id, err := gw.Create(ctx, document.Template{Name: strings.Join(args, " "), Doc: document.Starter()})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, id)
	return nil
}

func cmdShow(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return usageErr("show requires <id>")
	}
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	t, err := storage.Lookup(ctx, gw, args[0])
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(b))
	return err
}

func cmdImport(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return usageErr("import requires <record.json>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	t, err := storage.DecodeRecord(data)
	if err != nil {
		return err
	}
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	t.ID = ""
	id, err := gw.Create(ctx, t)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, id)
	return nil
}

func cmdValidate(_ context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return usageErr("validate requires <record.json>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := storage.ValidateRecord(data); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "valid")
	return nil
}

func cmdRender(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	scale := fs.Float64("scale", 1, "output scale")
	pc := contextFlags(fs)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usageErr("render requires <id> <out.png>")
	}
	if *scale <= 0 {
		return usageErr("--scale must be positive")
	}
	t, r, err := c.load(ctx, pos[0])
	if err != nil {
		return err
	}
	if err := export.ExportPNG(pos[1], r, t.Doc, export.PNGOptions{Scale: *scale, Context: *pc}); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Wrote", pos[1])
	return nil
}

func cmdThumbnail(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("thumbnail", flag.ContinueOnError)
	width := fs.Int("width", c.cfg.Render.ThumbnailWidth, "thumbnail width in pixels")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usageErr("thumbnail requires <id> <out.png>")
	}
	if *width <= 0 {
		*width = render.ThumbnailWidth
	}
	t, r, err := c.load(ctx, pos[0])
	if err != nil {
		return err
	}
	gen := func(context.Context) ([]byte, error) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, r.Thumbnail(t.Doc, placeholder.Context{}, *width)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	var data []byte
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	thumbs, err := storage.OpenThumbs(gw, c.cfg)
	if err != nil {
		applog.WithComponent("cli").Warn("thumbnail cache unavailable", slog.Any("err", err))
		data, err = gen(ctx)
	} else {
		defer thumbs.Close()
		s := render.ThumbnailScale(t.Doc, *width)
		h := int(math.Ceil(t.Doc.Height*s - 1e-6))
		data, err = thumbs.GetOrCreate(ctx, t.ID, t.UpdatedAt, *width, h, gen)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(pos[1], data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Wrote", pos[1])
	return nil
}

func cmdPreview(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	pc := contextFlags(fs)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 4 {
		return usageErr("preview requires <id> <W> <H> <out.png>")
	}
	w, errW := strconv.Atoi(pos[1])
	h, errH := strconv.Atoi(pos[2])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return usageErr("preview size must be positive integers")
	}
	t, r, err := c.load(ctx, pos[0])
	if err != nil {
		return err
	}
	img, scale, err := r.Preview(t.Doc, *pc, w, h)
	if err != nil {
		return err
	}
	f, err := os.Create(pos[3])
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Wrote %s at scale %.4f\n", pos[3], scale)
	return nil
}

func cmdExport(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	preset := fs.String("preset", "", "web or print bundle")
	formats := fs.String("formats", "", "comma separated formats for --preset (pdf,png,svg)")
	dir := fs.String("dir", "", "output directory for --preset")
	scale := fs.Float64("scale", 0, "raster scale (default 1, or the preset's)")
	pc := contextFlags(fs)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if *preset == "" && len(pos) != 2 {
		return usageErr("export requires <id> <out.pdf|png|svg> or <id> --preset web|print")
	}
	if *preset != "" && len(pos) != 1 {
		return usageErr("export --preset takes only <id>")
	}
	t, r, err := c.load(ctx, pos[0])
	if err != nil {
		return err
	}
	if *preset == "" {
		s := *scale
		if s <= 0 {
			s = 1
		}
		if err := export.ExportFile(pos[1], r, t.Doc, *pc, s); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Wrote", pos[1])
		return nil
	}
	var fl []string
	for _, f := range strings.Split(*formats, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fl = append(fl, f)
		}
	}
	paths, err := export.BatchExport(r, t.Doc, export.BatchOptions{
		Preset:   export.PresetName(*preset),
		Formats:  fl,
		Scale:    *scale,
		OutDir:   *dir,
		BaseName: t.Name,
		Context:  *pc,
	})
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(c.out, "Wrote", p)
	}
	return nil
}

func cmdMerge(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	format := fs.String("format", "pdf", "png or pdf")
	scale := fs.Float64("scale", 1, "PNG scale")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 3 {
		return usageErr("merge requires <id> <recipients.csv> <out.zip>")
	}
	f, err := os.Open(pos[1])
	if err != nil {
		return err
	}
	recipients, err := export.ReadRecipients(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	t, r, err := c.load(ctx, pos[0])
	if err != nil {
		return err
	}
	out := pos[2]
	if !strings.HasSuffix(strings.ToLower(out), ".zip") {
		out += ".zip"
	}
	if err := export.MergeFile(ctx, out, r, t.Doc, recipients, export.MergeOptions{Format: *format, Scale: *scale}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Wrote %d certificates to %s\n", len(recipients), out)
	return nil
}

func cmdDuplicate(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return usageErr("duplicate requires <id>")
	}
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	id, err := gw.Duplicate(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, id)
	return nil
}

func cmdDelete(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return usageErr("delete requires <id>")
	}
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	if err := gw.Delete(ctx, args[0]); err != nil {
		return err
	}
	if thumbs, err := storage.OpenThumbs(gw, c.cfg); err == nil {
		_ = thumbs.Forget(ctx, args[0])
		_ = thumbs.Close()
	}
	fmt.Fprintln(c.out, "Deleted", args[0])
	return nil
}

// cmdRestore stores the newest crash autosave: over its original record when
// that still exists, as a new template otherwise.
func cmdRestore(ctx context.Context, c *cli, _ []string) error {
	path, err := crash.LatestAutosave(c.cfg.ResolvedDataDir())
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("no autosave found")
	}
	t, err := crash.LoadAutosave(path)
	if err != nil {
		return err
	}
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	id := t.ID
	if id != "" {
		if _, err := storage.Lookup(ctx, gw, id); err == nil {
			if err := gw.Update(ctx, id, t); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Restored %s from %s\n", id, path)
			return nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	t.ID = ""
	if id, err = gw.Create(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Restored %s from %s\n", id, path)
	return nil
}

func cmdServe(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", c.cfg.Backend.Addr, "listen address")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if c.cfg.Storage.Kind == "http" {
		return errors.New("serve needs local storage; storage.kind is http")
	}
	gw, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	r, images := c.renderer()
	srv := backend.NewServer(backend.Options{Gateway: gw, Renderer: r, Images: images, Secret: backend.SecretFromEnv()})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(*addr) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	l := applog.WithComponent("cli")
	l.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func cmdLogin(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	ttl := fs.Duration("ttl", backend.DefaultTokenTTL, "token lifetime")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	subject := ""
	if len(pos) > 0 {
		subject = pos[0]
	}
	client := backend.NewClientFromConfig(c.cfg.Backend, "")
	exp, err := client.RequestToken(ctx, subject, *ttl)
	if err != nil {
		return err
	}
	if err := config.StoreToken(client.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Fprintf(c.out, "Logged in to %s until %s\n", c.cfg.Backend.BaseURL, exp.Local().Format(time.RFC1123))
	return nil
}

func cmdLogout(_ context.Context, c *cli, _ []string) error {
	if err := config.ForgetToken(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func cmdUI(_ context.Context, c *cli, args []string) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	}
	return ui.Run(c.cfg, c.token, id)
}
