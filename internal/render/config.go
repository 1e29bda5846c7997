/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package render

import (
	"log/slog"

	"certstudio/internal/config"
	"certstudio/internal/imagecache"
	applog "certstudio/internal/log"
	"certstudio/internal/placeholder"
	"certstudio/internal/textlayout"
)

// FromConfig builds a renderer with the configured sample values and an
// image cache bounded by the configured fetch limit. Fonts found in
// rc.FontDir are added to the embedded set; an unreadable font dir is logged
// and skipped. baseDir resolves relative image paths.
func FromConfig(rc config.RenderConfig, baseDir string, onReady func(src string, st imagecache.State)) (*Renderer, *imagecache.Cache) {
	images := imagecache.New(imagecache.Options{MaxBytes: rc.ImageFetchLimit, BaseDir: baseDir, OnReady: onReady})
	fonts := textlayout.Default()
	if rc.FontDir != "" {
		fonts = textlayout.NewFontLibrary()
		n, err := fonts.LoadDir(rc.FontDir)
		l := applog.WithComponent("render")
		if err != nil {
			l.Warn("user fonts not loaded", slog.String("dir", rc.FontDir), slog.Any("err", err))
		} else {
			l.Debug("user fonts loaded", slog.String("dir", rc.FontDir), slog.Int("count", n))
		}
	}
	fb := placeholder.Fallbacks{Name: rc.FallbackName, Course: rc.FallbackCourse, Date: rc.FallbackDate}
	return New(Options{Fonts: fonts, Images: images, Fallbacks: fb.WithDefaults()}), images
}
