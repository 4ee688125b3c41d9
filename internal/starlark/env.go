package starlark

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
)

// Reserved environment variable prefixes and the value recorded for
// variables resolved from a default.
const (
	SecretEnvPrefix    = "DBT_ENV_SECRET"
	InternalEnvPrefix  = "_DBT"
	DefaultEnvSentinel = "__dbt_placeholder__"
)

// EnvVars records every environment variable read through env_var during
// one invocation. Values read from the environment are stored as-is;
// variables that fell back to a default are stored as DefaultEnvSentinel.
// It is shared by all evaluations in the process.
type EnvVars struct {
	mu   sync.Mutex
	vars map[string]string
}

var usedEnvVars = &EnvVars{vars: make(map[string]string)}

// UsedEnvVars returns the process-wide env_var side table.
func UsedEnvVars() *EnvVars { return usedEnvVars }

func (e *EnvVars) record(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
}

// Snapshot returns a copy of the recorded variables.
func (e *EnvVars) Snapshot() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

// Reset clears the table. Call it once per invocation.
func (e *EnvVars) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars = make(map[string]string)
}

// minRedactLen is the shortest recorded value Redact will mask.
const minRedactLen = 6

// Redact masks every whole-token occurrence of a recorded real value in s.
// Placeholder entries, values shorter than minRedactLen and numeric or
// boolean values are left alone.
func (e *EnvVars) Redact(s string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range e.vars {
		if !redactable(v) {
			continue
		}
		s = replaceToken(s, v, "*****")
	}
	return s
}

func redactable(v string) bool {
	if v == DefaultEnvSentinel || len(v) < minRedactLen {
		return false
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return false
	}
	if _, err := strconv.ParseBool(v); err == nil {
		return false
	}
	return true
}

// replaceToken replaces occurrences of old in s that are not adjacent to a
// letter, digit or underscore.
func replaceToken(s, old, mask string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, old)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := i + len(old)
		if isWordByteBefore(s, i) || isWordByteAt(s, end) {
			b.WriteString(s[:i+1])
			s = s[i+1:]
			continue
		}
		b.WriteString(s[:i])
		b.WriteString(mask)
		s = s[end:]
	}
}

func isWordByteBefore(s string, i int) bool {
	return i > 0 && isWordByte(s[i-1])
}

func isWordByteAt(s string, i int) bool {
	return i < len(s) && isWordByte(s[i])
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// envVar resolves env_var(value|var, default=None).
func envVar(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	p := newArgParser(b.Name(), args, kwargs)
	name, ok := p.keyword("value")
	if !ok {
		name, ok = p.keyword("var")
	}
	if !ok {
		name, ok = p.optional("value")
	}
	varName, isString := starlark.AsString(name)
	if !ok || !isString {
		return nil, core.InvalidOperationError("env_var requires a 'value' or 'var' argument")
	}
	def, hasDefault := p.optional("default")

	switch {
	case strings.HasPrefix(varName, SecretEnvPrefix):
		return nil, core.InvalidOperationError("Secret environment variables (starting with %s) cannot be accessed here", SecretEnvPrefix)
	case strings.HasPrefix(varName, InternalEnvPrefix):
		return nil, core.InvalidOperationError("Environment variables (starting with %s) cannot be accessed here", InternalEnvPrefix)
	}

	if value, found := os.LookupEnv(varName); found {
		usedEnvVars.record(varName, value)
		return starlark.String(value), nil
	}
	if hasDefault {
		usedEnvVars.record(varName, DefaultEnvSentinel)
		return starlark.String(Stringify(def)), nil
	}
	return nil, core.InvalidOperationError("'env_var': environment variable '%s' not found", varName)
}
