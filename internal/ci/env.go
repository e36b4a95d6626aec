// Package ci exposes the continuous-integration context a build is started from:
// the triggering event, repository, revision, and the process environment.
package ci

import (
	"fmt"
	"os"
	"strings"
)

// Env is a key/value environment namespace
type Env interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the process environment
type OSEnv struct{}

// LookupEnv implements Env
func (OSEnv) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv is an in-memory environment, mostly useful in tests
type MapEnv map[string]string

// LookupEnv implements Env
func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Getenv returns the value of key, or "" when unset
func Getenv(env Env, key string) string {
	v, _ := env.LookupEnv(key)
	return v
}

// RequireEnv returns the value of key or an error when it is unset
func RequireEnv(env Env, key string) (string, error) {
	v, ok := env.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("Expected environment %q to be available", key)
	}
	return v, nil
}

// inputKey mirrors how the Actions runner exposes `with:` inputs
func inputKey(name string) string {
	return "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
}

// Input returns the trimmed value of a GitHub Action input
func Input(env Env, name string) string {
	return strings.TrimSpace(Getenv(env, inputKey(name)))
}

// InputBool reports whether an action input is set to "true"
func InputBool(env Env, name string) bool {
	return strings.EqualFold(Input(env, name), "true")
}

// RequireInput returns the value of a required action input
func RequireInput(env Env, name string) (string, error) {
	v := Input(env, name)
	if v == "" {
		return "", fmt.Errorf("Input required and not supplied: %s", name)
	}
	return v, nil
}

// SetOutput records a step output in the file named by GITHUB_OUTPUT.
// It reports false when the runner did not provide an output file.
func SetOutput(env Env, name, value string) (bool, error) {
	path := Getenv(env, "GITHUB_OUTPUT")
	if path == "" {
		return false, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s=%s\n", name, value); err != nil {
		return false, fmt.Errorf("failed to write output %s: %w", name, err)
	}
	return true, nil
}
