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
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok, err := signToken("s3cret", "ada", now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	sub, err := verifyToken("s3cret", tok, now)
	if err != nil || sub != "ada" {
		t.Fatalf("verify = %q, %v", sub, err)
	}
	if _, err := verifyToken("s3cret", tok, now.Add(2*time.Hour)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired token accepted: %v", err)
	}
	if _, err := verifyToken("other", tok, now); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong secret accepted: %v", err)
	}
	payload, sig, _ := strings.Cut(tok, ".")
	for _, bad := range []string{payload, payload + "." + sig + ".x", "!!." + sig, payload + ".!!", "e30." + sig} {
		if _, err := verifyToken("s3cret", bad, now); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%q accepted: %v", bad, err)
		}
	}
}

func TestEmptySubjectDefaultsToDev(t *testing.T) {
	now := time.Now()
	tok, _ := signToken("k", "", now.Add(time.Minute))
	if sub, err := verifyToken("k", tok, now); err != nil || sub != "dev" {
		t.Fatalf("sub = %q, %v", sub, err)
	}
}

func TestClampTTL(t *testing.T) {
	cases := map[int64]time.Duration{
		0:         DefaultTokenTTL,
		-5:        DefaultTokenTTL,
		90:        90 * time.Second,
		86400:     MaxTokenTTL,
		86400 + 1: DefaultTokenTTL,
	}
	for in, want := range cases {
		if got := clampTTL(in); got != want {
			t.Errorf("clampTTL(%d) = %v, want %v", in, got, want)
		}
	}
}

func TestSecretFromEnv(t *testing.T) {
	t.Setenv(EnvAuthSecret, "")
	if SecretFromEnv() != devSecret {
		t.Fatalf("expected dev fallback")
	}
	t.Setenv(EnvAuthSecret, " prod ")
	if SecretFromEnv() != "prod" {
		t.Fatalf("secret not trimmed")
	}
}
