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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"certstudio/internal/config"
	"certstudio/internal/crash"
	applog "certstudio/internal/log"
	"certstudio/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "CertStudio - certificate template editor")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  certstudio version|-v|--version                   Show version")
	fmt.Fprintln(w, "  certstudio list                                   List stored templates")
	fmt.Fprintln(w, "  certstudio new <name>                             Store a new template from the starter layout")
	fmt.Fprintln(w, "  certstudio show <id>                              Print a template record as JSON")
	fmt.Fprintln(w, "  certstudio import <record.json>                   Validate and store a template record")
	fmt.Fprintln(w, "  certstudio validate <record.json>                 Check a template record against the schema")
	fmt.Fprintln(w, "  certstudio render <id> <out.png> [--scale s]      Render to PNG (--name, --course, --date)")
	fmt.Fprintln(w, "  certstudio thumbnail <id> <out.png> [--width w]   Render a gallery thumbnail")
	fmt.Fprintln(w, "  certstudio preview <id> <W> <H> <out.png>         Render scaled to fit a W x H box")
	fmt.Fprintln(w, "  certstudio export <id> <out.pdf|png|svg>          Export one file by extension")
	fmt.Fprintln(w, "  certstudio export <id> --preset web|print [--dir d] Export a preset bundle")
	fmt.Fprintln(w, "  certstudio merge <id> <recipients.csv> <out.zip>  One certificate per CSV row (--format png|pdf)")
	fmt.Fprintln(w, "  certstudio duplicate <id>                         Copy a template")
	fmt.Fprintln(w, "  certstudio delete <id>                            Delete a template")
	fmt.Fprintln(w, "  certstudio restore                                Store the newest crash autosave")
	fmt.Fprintln(w, "  certstudio serve [--addr :8080]                   Run the HTTP template service")
	fmt.Fprintln(w, "  certstudio login [subject]                        Request a backend token into the keychain")
	fmt.Fprintln(w, "  certstudio logout                                 Remove the backend token")
	fmt.Fprintln(w, "  certstudio ui [<id>]                              Launch desktop editor (build with -tags fyne)")
}

// errUsage marks bad command lines; run prints usage and exits 2.
var errUsage = errors.New("usage")

func main() {
	cfg, token, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	defer crash.Recover(cfg.ResolvedDataDir(), nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, &cli{cfg: cfg, token: token, out: os.Stdout, errOut: os.Stderr}, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, c *cli, args []string) int {
	l := applog.WithComponent("cli")
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(c.out)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(c.errOut, "unknown command %q\n\n", args[0])
		usage(c.errOut)
		return 2
	}
	err := cmd(ctx, c, args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(c.errOut, err)
		fmt.Fprintln(c.errOut)
		usage(c.errOut)
		return 2
	default:
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		fmt.Fprintln(c.errOut, "Error:", err)
		return 1
	}
}
