// Package creds implements the Credential Store (spec §4.2): reading and
// writing the `.env` file inside a credentials pocket, and computing
// per-engine readiness (spec §3 "Readiness").
//
// The `.env` parser follows the teacher's tools/app-entrypoint loadEnvFile
// routine (bufio.Scanner, '#'-comment skip, single split on '='), extended
// to strip one layer of matching quotes per the CredsEnv data model.
package creds

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Mgeezy9/CLIBoard/internal/apierr"
)

const envFileName = ".env"

// Env is the parsed key/value form of a credentials pocket's .env file.
type Env map[string]string

// ReadEnv parses <credsDir>/.env. A missing file yields an empty map, not
// an error. Lines without '=' are ignored. Values may be wrapped in a
// single matching pair of single or double quotes, stripped on read.
func ReadEnv(credsDir string) (Env, error) {
	path := filepath.Join(credsDir, envFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Env{}, nil
		}
		return nil, apierr.Wrap(apierr.KindReadinessIndeterminate, err)
	}
	defer f.Close()

	out := Env{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		val := strings.TrimSpace(parts[1])
		out[key] = unquote(val)
	}
	if err := scanner.Err(); err != nil {
		return nil, apierr.Wrap(apierr.KindReadinessIndeterminate, err)
	}
	return out, nil
}

// WriteEnv atomically overlays updates onto the current .env contents and
// rewrites the whole file, creating credsDir if missing. Keys with empty
// string values are retained: there is no key-deletion semantics (spec §9
// open question, resolved by keeping the source behavior unchanged).
func WriteEnv(credsDir string, updates map[string]string) (Env, error) {
	if err := os.MkdirAll(credsDir, 0o700); err != nil {
		return nil, apierr.Wrap(apierr.KindReadinessIndeterminate, err)
	}
	current, err := ReadEnv(credsDir)
	if err != nil {
		return nil, err
	}
	for k, v := range updates {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		current[k] = v
	}

	keys := make([]string, 0, len(current))
	for k := range current {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, quoteIfNeeded(current[k]))
	}

	path := filepath.Join(credsDir, envFileName)
	tmp, err := os.CreateTemp(credsDir, ".env.tmp-*")
	if err != nil {
		return nil, apierr.Wrap(apierr.KindReadinessIndeterminate, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, apierr.Wrap(apierr.KindReadinessIndeterminate, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, apierr.Wrap(apierr.KindReadinessIndeterminate, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, apierr.Wrap(apierr.KindReadinessIndeterminate, err)
	}
	return current, nil
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	first, last := val[0], val[len(val)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return val[1 : len(val)-1]
	}
	return val
}

func quoteIfNeeded(val string) string {
	if strings.ContainsAny(val, " #\"'") {
		return fmt.Sprintf("%q", val)
	}
	return val
}

