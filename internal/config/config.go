// Package config loads the control plane's environment configuration
// (spec §6 "Environment configuration enumerated"). It generalizes the
// teacher's ad hoc env(key, def string) helper (agents/dashboard/main.go)
// into a single typed struct loaded once at startup.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the full set of environment knobs spec §6 enumerates.
type Config struct {
	Port               int
	BindHost           string
	Image              string
	IdleTimeoutSec      int
	AllowWorkspaceRoots []string
	AllowCredsRoots     []string
}

// Load reads Config from the process environment, applying the defaults
// spec §6 lists.
func Load() Config {
	return Config{
		Port:                envInt("PORT", 8080),
		BindHost:            envString("BIND_HOST", "127.0.0.1"),
		Image:               envString("CLI_RUNNER_IMAGE", ""),
		IdleTimeoutSec:      envInt("IDLE_TIMEOUT_SEC", 0),
		AllowWorkspaceRoots: envList("ALLOW_WORKSPACE_ROOTS"),
		AllowCredsRoots:     envList("ALLOW_CREDS_ROOTS"),
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
