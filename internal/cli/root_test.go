package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/leapforge/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapforge/pkg/auth/snowflake"
)

const projectYAML = `project_name: shop
target:
  type: postgres
  host: localhost
  database: warehouse
  schema: analytics
  user: etl
  password: hunter2
targets:
  dev: {}
  prod:
    schema: prod
vars:
  region: eu
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func setupProject(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "leapforge.yaml"), cfg)
	writeFile(t, filepath.Join(dir, "models", "customers.sql"), "select 1 as id\n")
	writeFile(t, filepath.Join(dir, "models", "orders.sql"),
		"/*---\nconfig:\n  materialized: table\n---*/\nselect * from {{ ref('customers') }}\n")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "config", "auth", "plan", "run", "eval", "completion"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "target", "models-path", "state", "threads", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestVersion_NoProject(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapforge v"+Version)
}

func TestConfigCommand(t *testing.T) {
	dir := setupProject(t, projectYAML)
	cfgPath := filepath.Join(dir, "leapforge.yaml")

	t.Run("redacts credentials", func(t *testing.T) {
		out, err := execute(t, "config", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "project_name: shop")
		assert.Contains(t, out, "target_name: dev")
		assert.Contains(t, out, "********")
		assert.NotContains(t, out, "hunter2")
		assert.Contains(t, out, "models_path: "+filepath.Join(dir, "models"))
	})

	t.Run("target flag selects named target", func(t *testing.T) {
		out, err := execute(t, "config", "--config", cfgPath, "--target", "prod", "--threads", "8")
		require.NoError(t, err)
		assert.Contains(t, out, "target_name: prod")
		assert.Contains(t, out, "schema: prod")
		assert.Contains(t, out, "threads: 8")
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv(config.EnvPrefix+"TARGET__SCHEMA", "from_env")
		out, err := execute(t, "config", "--config", cfgPath, "--show-secrets")
		require.NoError(t, err)
		assert.Contains(t, out, "schema: from_env")
		assert.Contains(t, out, "password: hunter2")
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := execute(t, "config", "--config", cfgPath, "--target", "staging")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `target "staging" is not defined`)
	})
}

func TestAuthDescribe(t *testing.T) {
	dir := setupProject(t, `project_name: shop
target:
  type: snowflake
  account: acme
  user: etl
  password: hunter2
  role: transformer
  warehouse: wh
  database: raw
  schema: analytics
  method: warehouse
`)
	cfgPath := filepath.Join(dir, "leapforge.yaml")

	out, err := execute(t, "auth", "describe", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "dev (snowflake)")
	assert.Contains(t, out, "acme")
	assert.Contains(t, out, "transformer")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")

	out, err = execute(t, "auth", "describe", "--config", cfgPath, "--show-secrets")
	require.NoError(t, err)
	assert.Contains(t, out, "hunter2")
}

func TestAuthDescribe_UnsupportedBackend(t *testing.T) {
	dir := setupProject(t, projectYAML)
	_, err := execute(t, "auth", "describe", "--config", filepath.Join(dir, "leapforge.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no connection builder for adapter type "postgres"`)
	assert.Contains(t, err.Error(), "snowflake")
}

func TestPlanCommand(t *testing.T) {
	dir := setupProject(t, projectYAML)
	out, err := execute(t, "plan", "--config", filepath.Join(dir, "leapforge.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Models")
	assert.Contains(t, out, "model.shop.customers")
	assert.Contains(t, out, "model.shop.orders")
	assert.Contains(t, out, "2 node(s): 2 new")
	assert.FileExists(t, filepath.Join(dir, ".leapforge", "state.db"))
}

func TestRunCommand_UnknownSelector(t *testing.T) {
	dir := setupProject(t, projectYAML)
	_, err := execute(t, "run", "--config", filepath.Join(dir, "leapforge.yaml"), "--select", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `selector "missing" matched no enabled node`)
}

func TestCommands_RequireProject(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, args := range [][]string{{"plan"}, {"config"}} {
		_, err := execute(t, args...)
		require.Error(t, err, "%v", args)
	}
}

func TestEvalCommand(t *testing.T) {
	t.Run("outside a project", func(t *testing.T) {
		t.Chdir(t.TempDir())
		out, err := execute(t, "eval", "1 + 2")
		require.NoError(t, err)
		assert.Equal(t, "3\n", out)
	})

	t.Run("vars flag", func(t *testing.T) {
		t.Chdir(t.TempDir())
		out, err := execute(t, "eval", `var("who") + "!"`, "--vars", "{who: world}")
		require.NoError(t, err)
		assert.Equal(t, "world!\n", out)
	})

	t.Run("json output", func(t *testing.T) {
		t.Chdir(t.TempDir())
		out, err := execute(t, "eval", `{"a": [1, True, None]}`, "--json")
		require.NoError(t, err)
		assert.Equal(t, `{"a":[1,true,null]}`+"\n", out)
	})

	t.Run("project vars and target", func(t *testing.T) {
		dir := setupProject(t, projectYAML)
		t.Chdir(dir)
		out, err := execute(t, "eval", `var("region") + "/" + target.schema`)
		require.NoError(t, err)
		assert.Equal(t, "eu/analytics\n", out)
	})

	t.Run("error", func(t *testing.T) {
		t.Chdir(t.TempDir())
		_, err := execute(t, "eval", "undefined_name")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "undefined")
	})
}
