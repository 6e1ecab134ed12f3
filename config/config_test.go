package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsfans/sql2mongo/converter"
	"github.com/tsfans/sql2mongo/formatter"
	"github.com/tsfans/sql2mongo/parser"
)

const sampleConfig = `
log:
  level: debug
output:
  format: json
  banner: false
regex:
  options: im
value_fields: [v, val]
schema:
  orders: [id, total]
  customers: [id, name]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sql2mongo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultLogLvl, cfg.Log.Level)
	assert.Equal(t, FormatShell, cfg.Output.Format)
	assert.True(t, cfg.Output.Banner)
	assert.Equal(t, converter.Default_Regex_Options, cfg.Regex.Options)
	assert.Equal(t, []string{converter.Default_Value_Field}, cfg.ValueFields)
	assert.Empty(t, cfg.Schema)
	assert.Equal(t, cfg, Default())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, found, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.False(t, cfg.Output.Banner)
	assert.Equal(t, "im", cfg.Regex.Options)
	assert.Equal(t, []string{"v", "val"}, cfg.ValueFields)
	assert.Equal(t, []string{"id", "name"}, cfg.Schema["customers"])
}

func TestLoadFromHomeConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", ConfigName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sql2mongo.yml"), []byte("output:\n  format: json\n"), 0o644))

	cfg, found, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sql2mongo.yml"), found)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.True(t, cfg.Output.Banner)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("SQL2MONGO_OUTPUT_FORMAT", FormatShell)
	t.Setenv("SQL2MONGO_LOG_LEVEL", "warn")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatShell, cfg.Output.Format)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")

	_, _, err = Load(writeConfig(t, "output:\n  format: xml\n"))
	assert.ErrorContains(t, err, "invalid output format")

	_, _, err = Load(writeConfig(t, "output: [\n"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestConverterOptions(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	sel, err := parser.Parse("select * from t where val = 1 and name like 'a%'")
	require.NoError(t, err)
	result, err := converter.Translate(sel, cfg.ConverterOptions()...)
	require.NoError(t, err)

	q, ok := result.(*converter.FindQuery)
	require.True(t, ok)
	expected := `{
  "$and": [
    {
      "$eq": 1
    },
    {
      "name": {
        "$regex": "^a.*$",
        "$options": "im"
      }
    }
  ]
}`
	assert.Equal(t, expected, formatter.FormatValue(q.Filter))
}
