// Package macro loads Starlark macros and runs them on behalf of adapters.
// Macros are loaded from .star files and auto-namespaced based on filename.
package macro

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"go.starlark.net/starlark"
)

// BuiltinPackage is the package name of the macros shipped with leapforge.
const BuiltinPackage = "dbt"

//go:embed builtin/*.star
var builtinFS embed.FS

// Loader scans a directory for .star files and compiles them.
type Loader struct {
	fsys fs.FS
	dir  string
	pkg  string
	// extra are namespaces defined outside this loader that macros may
	// reference.
	extra []string
}

// NewLoader creates a loader for the project macro directory.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// BuiltinLoader returns a loader for the default macros.
func BuiltinLoader() *Loader {
	sub, _ := fs.Sub(builtinFS, "builtin")
	return &Loader{fsys: sub, dir: "builtin", pkg: BuiltinPackage}
}

// WithNamespaces declares namespaces of other loaders so macros may call
// into them.
func (l *Loader) WithNamespaces(names ...string) *Loader {
	l.extra = append(l.extra, names...)
	return l
}

// LoadedModule represents a compiled Starlark macro file.
type LoadedModule struct {
	// Namespace is derived from filename (e.g., "datetime" from "datetime.star")
	Namespace string

	// Path is the path to the .star file
	Path string

	// Package is "" for project macros and BuiltinPackage for defaults.
	Package string

	// Functions are the exported functions found by static parsing.
	Functions []*ParsedFunction

	// Exports contains all exported values (names not starting with _) of
	// a load-time execution. Functions in Exports see placeholder globals;
	// call macros through an Executor instead.
	Exports starlark.StringDict

	program *starlark.Program
}

// HasFunction reports whether the module exports a function called name.
func (m *LoadedModule) HasFunction(name string) bool {
	return slices.ContainsFunc(m.Functions, func(f *ParsedFunction) bool { return f.Name == name })
}

// Load scans the macro directory and compiles all .star files.
// A missing directory yields nil modules and no error.
func (l *Loader) Load() ([]*LoadedModule, error) {
	fsys := l.fsys
	if fsys == nil {
		info, err := os.Stat(l.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to access macros directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("macros path is not a directory: %s", l.dir)
		}
		fsys = os.DirFS(l.dir)
	}

	files, err := fs.Glob(fsys, "*.star")
	if err != nil {
		return nil, fmt.Errorf("failed to scan macros directory: %w", err)
	}

	namespaces := make([]string, 0, len(files)+len(l.extra))
	for _, file := range files {
		namespaces = append(namespaces, strings.TrimSuffix(file, ".star"))
	}
	namespaces = append(namespaces, l.extra...)
	predeclared := predeclaredSet(namespaces)

	var modules []*LoadedModule
	for _, file := range files {
		module, err := l.loadFile(fsys, file, predeclared)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

func predeclaredSet(namespaces []string) map[string]bool {
	set := make(map[string]bool)
	for _, name := range lfstarlark.PredeclaredNames() {
		set[name] = true
	}
	for _, ns := range namespaces {
		set[ns] = true
	}
	return set
}

// loadFile compiles a single .star file and extracts its exports.
func (l *Loader) loadFile(fsys fs.FS, name string, predeclared map[string]bool) (*LoadedModule, error) {
	filePath := filepath.Join(l.dir, name)
	if l.fsys != nil {
		filePath = path.Join(l.dir, name)
	}

	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, &LoadError{File: filePath, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	namespace := strings.TrimSuffix(name, ".star")
	if err := validateNamespace(namespace); err != nil {
		return nil, &LoadError{File: filePath, Message: err.Error()}
	}

	functions, err := scanFunctions(filePath, content)
	if err != nil {
		return nil, &LoadError{File: filePath, Message: err.Error()}
	}

	_, program, err := starlark.SourceProgram(filePath, content, func(n string) bool { return predeclared[n] }) //nolint:staticcheck // SA1019: will migrate to SourceProgramOptions later
	if err != nil {
		return nil, &LoadError{File: filePath, Message: fmt.Sprintf("Starlark compile error: %v", err)}
	}

	module := &LoadedModule{
		Namespace: namespace,
		Path:      filePath,
		Package:   l.pkg,
		Functions: functions,
		program:   program,
	}

	thread := &starlark.Thread{
		Name:  fmt.Sprintf("load:%s", namespace),
		Print: func(*starlark.Thread, string) {},
	}
	globals, err := module.instantiate(thread, placeholderGlobals(predeclared))
	if err != nil {
		return nil, &LoadError{File: filePath, Message: fmt.Sprintf("Starlark execution error: %v", err)}
	}
	module.Exports = globals
	return module, nil
}

// placeholderGlobals binds every predeclared name for load-time execution.
// Built-ins are real; context values and namespaces are None.
func placeholderGlobals(predeclared map[string]bool) starlark.StringDict {
	builtins := lfstarlark.Builtins(lfstarlark.BuiltinOptions{})
	out := make(starlark.StringDict, len(predeclared))
	for name := range predeclared {
		if v, ok := builtins[name]; ok {
			out[name] = v
		} else {
			out[name] = starlark.None
		}
	}
	return out
}

// instantiate runs the module's top-level code with predeclared globals
// and returns its exported names.
func (m *LoadedModule) instantiate(thread *starlark.Thread, predeclared starlark.StringDict) (starlark.StringDict, error) {
	globals, err := m.program.Init(thread, predeclared)
	if err != nil {
		return nil, err
	}
	globals.Freeze()
	exports := make(starlark.StringDict, len(globals))
	for name, value := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = value
		}
	}
	return exports, nil
}

// validateNamespace checks if a namespace name is valid.
func validateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}

	for i, r := range name {
		if i == 0 {
			if !isLetter(r) && r != '_' {
				return fmt.Errorf("namespace must start with letter or underscore: %s", name)
			}
		} else if !isLetter(r) && !isDigit(r) && r != '_' {
			return fmt.Errorf("namespace contains invalid character: %s", name)
		}
	}

	return nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LoadError represents an error loading a macro file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("macros/%s: %s", filepath.Base(e.File), e.Message)
}
