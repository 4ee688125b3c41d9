// Package auth builds warehouse connection descriptors from raw profile
// configuration.
package auth

import (
	"fmt"
	"strconv"
)

// Option is one named driver option. Value is either a string or a bool.
type Option struct {
	Name  string
	Value any
}

// String renders the option value the way drivers expect it in a DSN.
func (o Option) String() string {
	switch v := o.Value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Builder accumulates a connection descriptor: an ordered set of named
// options plus the username and password. Setting an option twice keeps its
// first position and the last value.
type Builder struct {
	username *string
	password *string
	options  []Option
	index    map[string]int
}

// NewBuilder returns an empty descriptor.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// WithUsername sets the username.
func (b *Builder) WithUsername(v string) *Builder {
	b.username = &v
	return b
}

// WithPassword sets the password.
func (b *Builder) WithPassword(v string) *Builder {
	b.password = &v
	return b
}

// WithNamedOption sets a string option.
func (b *Builder) WithNamedOption(name, value string) *Builder {
	b.set(name, value)
	return b
}

// WithBoolOption sets a boolean option.
func (b *Builder) WithBoolOption(name string, value bool) *Builder {
	b.set(name, value)
	return b
}

func (b *Builder) set(name string, value any) {
	if i, ok := b.index[name]; ok {
		b.options[i].Value = value
		return
	}
	b.index[name] = len(b.options)
	b.options = append(b.options, Option{Name: name, Value: value})
}

// Username returns the username and whether it was set.
func (b *Builder) Username() (string, bool) {
	if b.username == nil {
		return "", false
	}
	return *b.username, true
}

// Password returns the password and whether it was set.
func (b *Builder) Password() (string, bool) {
	if b.password == nil {
		return "", false
	}
	return *b.password, true
}

// Options returns the named options in insertion order.
func (b *Builder) Options() []Option {
	out := make([]Option, len(b.options))
	copy(out, b.options)
	return out
}

// Get returns the rendered value of a named option.
func (b *Builder) Get(name string) (string, bool) {
	i, ok := b.index[name]
	if !ok {
		return "", false
	}
	return b.options[i].String(), true
}

// Len is the number of entries in the descriptor, counting username and
// password when set.
func (b *Builder) Len() int {
	n := len(b.options)
	if b.username != nil {
		n++
	}
	if b.password != nil {
		n++
	}
	return n
}

// Map flattens the descriptor. Username and password appear under "user"
// and "password".
func (b *Builder) Map() map[string]string {
	out := make(map[string]string, b.Len())
	if b.username != nil {
		out["user"] = *b.username
	}
	if b.password != nil {
		out["password"] = *b.password
	}
	for _, o := range b.options {
		out[o.Name] = o.String()
	}
	return out
}
