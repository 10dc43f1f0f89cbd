// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/nativedist/nativedist/pkg/target"
)

// Env holds installer settings read from the environment. Zero values mean
// the variable was not set.
type Env struct {
	Target   string        `env:"NATIVEDIST_TARGET"`
	BaseURL  string        `env:"NATIVEDIST_BASE_URL"`
	Attempts int           `env:"NATIVEDIST_ATTEMPTS"`
	Timeout  time.Duration `env:"NATIVEDIST_TIMEOUT"`
	Dest     string        `env:"NATIVEDIST_DEST"`
	// Token authenticates requests to the release store host.
	Token string `env:"NATIVEDIST_TOKEN"`
}

// LoadEnv reads installer settings from the process environment.
func LoadEnv() (Env, error) {
	return parseEnv(nil)
}

// parseEnv reads settings from environ, or the process environment when nil.
func parseEnv(environ map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if e.Target != "" {
		if _, err := target.Parse(e.Target); err != nil {
			return Env{}, fmt.Errorf("NATIVEDIST_TARGET: %w", err)
		}
	}
	if e.Attempts < 0 {
		return Env{}, errors.New("NATIVEDIST_ATTEMPTS must be at least 1")
	}
	if e.Timeout < 0 {
		return Env{}, errors.New("NATIVEDIST_TIMEOUT must be positive")
	}
	return e, nil
}

// Options converts the settings into installer options. Empty values are
// left out so they do not override other sources.
func (e Env) Options() []Option {
	var opts []Option
	if e.Attempts > 0 {
		opts = append(opts, WithAttempts(e.Attempts))
	}
	if e.Timeout > 0 {
		opts = append(opts, WithTimeout(e.Timeout))
	}
	if e.Target != "" {
		opts = append(opts, WithTargetOverride(e.Target))
	}
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.Dest != "" {
		opts = append(opts, WithDest(e.Dest))
	}
	if e.Token != "" {
		opts = append(opts, WithToken(e.Token))
	}
	return opts
}
