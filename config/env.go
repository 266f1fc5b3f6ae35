package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Env is the set of variables Load reads from. Production code builds it
// with Environ; tests pass a literal map.
type Env map[string]string

// Lookup returns the trimmed value for key. An empty value counts as unset.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Get returns the value for key or defaultValue when unset
func (e Env) Get(key, defaultValue string) string {
	if v, ok := e.Lookup(key); ok {
		return v
	}
	return defaultValue
}

// First returns the value of the first key that is set
func (e Env) First(keys ...string) (key, value string, ok bool) {
	for _, k := range keys {
		if v, found := e.Lookup(k); found {
			return k, v, true
		}
	}
	return "", "", false
}

// Environ snapshots the process environment on top of the given dotenv
// files. Later files override earlier ones and the process environment
// overrides them all. Files that do not exist are skipped.
func Environ(files ...string) (Env, error) {
	env := Env{}

	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, found := strings.Cut(kv, "=")
		if !found || k == "" {
			continue
		}
		env[k] = v
	}

	return env, nil
}
