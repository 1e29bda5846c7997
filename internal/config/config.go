/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied after the file is merged.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Render        RenderConfig  `yaml:"render"`
	Logging       LoggingConfig `yaml:"logging"`
}

type GeneralConfig struct {
	DataDir string `yaml:"data_dir"`
	Theme   string `yaml:"theme"` // "system" | "light" | "dark"
}

// StorageConfig selects the template persistence gateway.
//
// Kind is one of "sqlite", "file", "postgres" or "http". SQLiteDriver picks the
// registered database/sql driver for the sqlite kind: "sqlite" (modernc, default)
// or "sqlite3" (ncruces, wasm based).
type StorageConfig struct {
	Kind         string `yaml:"kind"`
	SQLiteDriver string `yaml:"sqlite_driver"`
	Path         string `yaml:"path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	Addr        string `yaml:"addr"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type RenderConfig struct {
	ThumbnailWidth  int    `yaml:"thumbnail_width"`
	FallbackName    string `yaml:"fallback_name"`
	FallbackCourse  string `yaml:"fallback_course"`
	FallbackDate    string `yaml:"fallback_date"`
	FontDir         string `yaml:"font_dir"`
	ImageFetchLimit int64  `yaml:"image_fetch_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "system"},
		Storage:       StorageConfig{Kind: "sqlite", SQLiteDriver: "sqlite"},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, Addr: ":8080"},
		Render: RenderConfig{
			ThumbnailWidth:  320,
			FallbackName:    "Jane Doe",
			FallbackCourse:  "Course Name",
			FallbackDate:    "",
			ImageFetchLimit: 20 << 20,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvDataDir          = "CST_DATA_DIR"
	EnvStorageKind      = "CST_STORAGE_KIND"
	EnvSQLiteDriver     = "CST_SQLITE_DRIVER"
	EnvStoragePath      = "CST_STORAGE_PATH"
	EnvPostgresDSN      = "CST_PG_DSN"
	EnvBackendURL       = "CST_BACKEND_URL"
	EnvBackendTimeoutMs = "CST_BACKEND_TIMEOUT_MS"
	EnvBackendAddr      = "CST_ADDR"
	EnvBackendTLSInsec  = "CST_TLS_INSECURE"
	EnvFallbackName     = "CST_FALLBACK_NAME"
	EnvFontDir          = "CST_FONT_DIR"
	EnvLogLevel         = "CST_LOG_LEVEL"
	EnvLogFormat        = "CST_LOG_FORMAT"
	EnvLogSource        = "CST_LOG_SOURCE"
	EnvLogFile          = "CST_LOG_FILE"
)

const (
	keyringService = "CertStudio"
	keyringToken   = "backend_token"
)

// TokenStore abstracts the OS keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore with github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// SetTokenStore replaces the keyring backend and returns the previous one.
func SetTokenStore(ts TokenStore) TokenStore {
	prev := tokenStore
	tokenStore = ts
	return prev
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "CertStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "CertStudio")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "certstudio")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "certstudio")
		}
	}
	if strings.TrimSpace(base) == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and merges
// environment overrides. The backend token is read from the keyring and
// returned separately; a keyring failure yields an empty token.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and stores the token in the keyring when non-empty.
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// StoreToken saves the backend token in the keyring without touching the config file.
func StoreToken(token string) error { return tokenStore.Set(keyringService, keyringToken, token) }

// ForgetToken removes the backend token from the keyring.
func ForgetToken() error { return tokenStore.Delete(keyringService, keyringToken) }

// ResolvedDataDir returns the data directory, defaulting to <config dir>/data.
func (c AppConfig) ResolvedDataDir() string {
	if d := strings.TrimSpace(c.General.DataDir); d != "" {
		return d
	}
	if dir, err := ConfigDir(); err == nil {
		return filepath.Join(dir, "data")
	}
	return filepath.Join(os.TempDir(), "certstudio")
}

// ResolvedStoragePath returns the sqlite file or template directory for file/sqlite kinds.
func (c AppConfig) ResolvedStoragePath() string {
	if p := strings.TrimSpace(c.Storage.Path); p != "" {
		return p
	}
	if c.Storage.Kind == "file" {
		return filepath.Join(c.ResolvedDataDir(), "templates")
	}
	return filepath.Join(c.ResolvedDataDir(), "templates.sqlite")
}

// Timeout returns the backend timeout, falling back to the default when unset.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	setStr(&dst.General.DataDir, src.General.DataDir)
	setStr(&dst.General.Theme, src.General.Theme)

	setLower(&dst.Storage.Kind, src.Storage.Kind)
	setLower(&dst.Storage.SQLiteDriver, src.Storage.SQLiteDriver)
	setStr(&dst.Storage.Path, src.Storage.Path)
	setStr(&dst.Storage.PostgresDSN, src.Storage.PostgresDSN)

	setStr(&dst.Backend.BaseURL, src.Backend.BaseURL)
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	setStr(&dst.Backend.Addr, src.Backend.Addr)
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure

	if src.Render.ThumbnailWidth > 0 {
		dst.Render.ThumbnailWidth = src.Render.ThumbnailWidth
	}
	setStr(&dst.Render.FallbackName, src.Render.FallbackName)
	setStr(&dst.Render.FallbackCourse, src.Render.FallbackCourse)
	setStr(&dst.Render.FallbackDate, src.Render.FallbackDate)
	setStr(&dst.Render.FontDir, src.Render.FontDir)
	if src.Render.ImageFetchLimit > 0 {
		dst.Render.ImageFetchLimit = src.Render.ImageFetchLimit
	}

	setLower(&dst.Logging.Level, src.Logging.Level)
	setLower(&dst.Logging.Format, src.Logging.Format)
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
}

func applyEnvOverrides(cfg *AppConfig) {
	setStr(&cfg.General.DataDir, os.Getenv(EnvDataDir))
	setLower(&cfg.Storage.Kind, os.Getenv(EnvStorageKind))
	setLower(&cfg.Storage.SQLiteDriver, os.Getenv(EnvSQLiteDriver))
	setStr(&cfg.Storage.Path, os.Getenv(EnvStoragePath))
	setStr(&cfg.Storage.PostgresDSN, os.Getenv(EnvPostgresDSN))
	setStr(&cfg.Backend.BaseURL, os.Getenv(EnvBackendURL))
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	setStr(&cfg.Backend.Addr, os.Getenv(EnvBackendAddr))
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = parseBool(v)
	}
	setStr(&cfg.Render.FallbackName, os.Getenv(EnvFallbackName))
	setStr(&cfg.Render.FontDir, os.Getenv(EnvFontDir))
	setLower(&cfg.Logging.Level, os.Getenv(EnvLogLevel))
	setLower(&cfg.Logging.Format, os.Getenv(EnvLogFormat))
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	setStr(&cfg.Logging.File, os.Getenv(EnvLogFile))
}

// EnvOverrideFor reports which env var, if any, overrides a dotted config key.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := map[string]string{
		"general.data_dir":      EnvDataDir,
		"storage.kind":          EnvStorageKind,
		"storage.sqlite_driver": EnvSQLiteDriver,
		"storage.path":          EnvStoragePath,
		"storage.postgres_dsn":  EnvPostgresDSN,
		"backend.base_url":      EnvBackendURL,
		"backend.timeout_ms":    EnvBackendTimeoutMs,
		"backend.addr":          EnvBackendAddr,
		"backend.tls_insecure":  EnvBackendTLSInsec,
		"render.fallback_name":  EnvFallbackName,
		"render.font_dir":       EnvFontDir,
		"logging.level":         EnvLogLevel,
		"logging.format":        EnvLogFormat,
		"logging.source":        EnvLogSource,
		"logging.file":          EnvLogFile,
	}[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setLower(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = strings.ToLower(v)
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}
