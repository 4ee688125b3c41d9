package macro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

// writeMacros creates a macros directory holding files.
func writeMacros(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "macros")
	require.NoError(t, os.Mkdir(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoader_Load(t *testing.T) {
	tests := []struct {
		name           string
		setupDir       func(t *testing.T) string
		wantModules    int
		wantNil        bool // expect nil modules (not empty slice)
		wantErr        bool
		wantNamespaces []string
		checkExports   map[string][]string // namespace -> expected exports
	}{
		{
			name:     "empty directory",
			setupDir: func(t *testing.T) string { return writeMacros(t, nil) },
		},
		{
			name:     "non-existent directory",
			setupDir: func(*testing.T) string { return "/nonexistent/path/to/macros" },
			wantNil:  true,
		},
		{
			name: "not a directory",
			setupDir: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "macros")
				require.NoError(t, os.WriteFile(path, []byte("not a dir"), 0o644))
				return path
			},
			wantErr: true,
		},
		{
			name: "single macro with multiple functions",
			setupDir: func(t *testing.T) string {
				return writeMacros(t, map[string]string{"utils.star": `
def greet(name):
    return "Hello, " + name + "!"

def add(a, b):
    return a + b

_private = "should not be exported"
`})
			},
			wantModules:    1,
			wantNamespaces: []string{"utils"},
			checkExports:   map[string][]string{"utils": {"greet", "add"}},
		},
		{
			name: "multiple macro files",
			setupDir: func(t *testing.T) string {
				return writeMacros(t, map[string]string{
					"datetime.star": "def now():\n    return \"2024-01-01\"\n",
					"math.star":     "def square(x):\n    return x * x\n",
				})
			},
			wantModules:    2,
			wantNamespaces: []string{"datetime", "math"},
		},
		{
			name: "references context globals and sibling namespaces",
			setupDir: func(t *testing.T) string {
				return writeMacros(t, map[string]string{
					"naming.star":  "def schema_name():\n    return target.schema + \"_\" + strings.suffix()\n",
					"strings.star": "def suffix():\n    return config.get(\"suffix\", \"x\")\n",
				})
			},
			wantModules:    2,
			wantNamespaces: []string{"naming", "strings"},
		},
		{
			name: "syntax error in macro",
			setupDir: func(t *testing.T) string {
				return writeMacros(t, map[string]string{"broken.star": "def broken(:\n    return 1\n"})
			},
			wantErr: true,
		},
		{
			name: "undefined global",
			setupDir: func(t *testing.T) string {
				return writeMacros(t, map[string]string{"bad.star": "def f():\n    return nowhere.x\n"})
			},
			wantErr: true,
		},
		{
			name: "invalid namespace (starts with number)",
			setupDir: func(t *testing.T) string {
				return writeMacros(t, map[string]string{"123invalid.star": "x = 1"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modules, err := NewLoader(tt.setupDir(t)).Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, modules)
				return
			}
			require.Len(t, modules, tt.wantModules)

			byNamespace := make(map[string]*LoadedModule)
			for _, m := range modules {
				byNamespace[m.Namespace] = m
			}
			for _, ns := range tt.wantNamespaces {
				assert.Contains(t, byNamespace, ns)
			}
			for ns, exports := range tt.checkExports {
				module := byNamespace[ns]
				require.NotNil(t, module, "namespace %q", ns)
				for _, name := range exports {
					assert.Contains(t, module.Exports, name)
					assert.True(t, module.HasFunction(name), "function %q", name)
				}
				assert.NotContains(t, module.Exports, "_private")
			}
		})
	}
}

func TestLoader_Load_SyntaxError_Details(t *testing.T) {
	dir := writeMacros(t, map[string]string{"broken.star": "def broken(:\n    return 1\n"})

	_, err := NewLoader(dir).Load()
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(dir, "broken.star"), loadErr.File)
	assert.Contains(t, err.Error(), "macros/broken.star")
}

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "datetime", false},
		{"valid with underscore", "date_time", false},
		{"valid start with underscore", "_private", false},
		{"valid with numbers", "utils2", false},
		{"empty", "", true},
		{"starts with number", "123abc", true},
		{"contains hyphen", "date-time", true},
		{"contains space", "date time", true},
		{"contains dot", "date.time", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNamespace(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoader_ExecuteFunction(t *testing.T) {
	dir := writeMacros(t, map[string]string{"math.star": "def double(x):\n    return x * 2\n"})

	modules, err := NewLoader(dir).Load()
	require.NoError(t, err)
	require.Len(t, modules, 1)

	doubleFn := modules[0].Exports["double"]
	require.NotNil(t, doubleFn)

	result, err := starlark.Call(&starlark.Thread{Name: "test"}, doubleFn, starlark.Tuple{starlark.MakeInt(5)}, nil)
	require.NoError(t, err)

	n, ok := result.(starlark.Int)
	require.True(t, ok, "expected Int result, got %T", result)
	val, _ := n.Int64()
	assert.Equal(t, int64(10), val)
}

func TestBuiltinLoader(t *testing.T) {
	modules, err := BuiltinLoader().Load()
	require.NoError(t, err)
	require.Len(t, modules, 1)

	m := modules[0]
	assert.Equal(t, BuiltinPackage, m.Namespace)
	assert.Equal(t, BuiltinPackage, m.Package)
	for _, fn := range []string{"drop_relation", "truncate_relation", "alter_column_type", "check_schema_exists", "rename_relation"} {
		assert.True(t, m.HasFunction(fn), "builtin %q", fn)
	}
	assert.False(t, m.HasFunction("_kind"))
}
