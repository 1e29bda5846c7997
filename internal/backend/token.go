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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	applog "certstudio/internal/log"
)

// ErrUnauthorized is returned for missing, malformed, forged or expired
// bearer tokens, on both sides of the wire.
var ErrUnauthorized = errors.New("unauthorized")

// EnvAuthSecret names the HMAC secret used to sign bearer tokens.
const EnvAuthSecret = "CST_AUTH_SECRET"

const devSecret = "dev-secret-change-me"

// Token lifetimes accepted by /api/auth/token.
const (
	DefaultTokenTTL = time.Hour
	MaxTokenTTL     = 24 * time.Hour
)

// SecretFromEnv returns the signing secret, falling back to an insecure
// development value with a warning.
func SecretFromEnv() string {
	if v := strings.TrimSpace(os.Getenv(EnvAuthSecret)); v != "" {
		return v
	}
	applog.WithComponent("backend").Warn("auth secret not set; using insecure dev secret", slog.String("env", EnvAuthSecret))
	return devSecret
}

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

// signToken returns "<payload>.<signature>", both base64url without padding.
func signToken(secret, subject string, exp time.Time) (string, error) {
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

// verifyToken checks the signature and expiry and returns the subject.
func verifyToken(secret, token string, now time.Time) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || strings.Contains(sig, ".") {
		return "", fmt.Errorf("%w: invalid token format", ErrUnauthorized)
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: invalid token payload", ErrUnauthorized)
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("%w: invalid token signature", ErrUnauthorized)
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", fmt.Errorf("%w: bad signature", ErrUnauthorized)
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", fmt.Errorf("%w: bad claims", ErrUnauthorized)
	}
	if claims.Exp < now.Unix() {
		return "", fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	if claims.Sub == "" {
		claims.Sub = "dev"
	}
	return claims.Sub, nil
}

// clampTTL maps a requested lifetime in seconds onto the allowed range.
func clampTTL(seconds int64) time.Duration {
	d := time.Duration(seconds) * time.Second
	if d <= 0 || d > MaxTokenTTL {
		return DefaultTokenTTL
	}
	return d
}
