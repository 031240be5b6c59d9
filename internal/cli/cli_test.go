package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func newDatasourceAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list := []map[string]interface{}{}
		if r.URL.Query().Get("searchVal") == "ds_pg" {
			list = append(list, map[string]interface{}{"id": 7, "name": "ds_pg", "type": "POSTGRESQL"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"msg":  "success",
			"data": map[string]interface{}{"totalList": list},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassifyCommand(t *testing.T) {
	out, _, err := run(t, "classify", "  WITH t AS (select 1) select * from t")
	require.NoError(t, err)
	assert.Equal(t, "SELECT\n", out)

	out, _, err = run(t, "classify", "insert", "into", "t", "values", "(1)")
	require.NoError(t, err)
	assert.Equal(t, "NOT_SELECT\n", out)

	out, _, err = run(t, "classify", "--json", "select 1")
	require.NoError(t, err)
	var resp map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "0", resp["sqlType"])
	assert.Equal(t, "SELECT", resp["sqlTypeName"])

	_, _, err = run(t, "classify")
	assert.ErrorContains(t, err, "sql is required")
}

func TestClassifyCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.sql")
	require.NoError(t, os.WriteFile(path, []byte("delete from t where id = 1;\n"), 0o644))

	out, _, err := run(t, "classify", "--sql-file", path)
	require.NoError(t, err)
	assert.Equal(t, "NOT_SELECT\n", out)
}

func TestDefineCommand(t *testing.T) {
	srv := newDatasourceAPI(t)

	out, _, err := run(t, "define",
		"--endpoint", srv.URL,
		"--name", "daily",
		"--datasource", "ds_pg",
		"--sql", "select * from orders where dt = '${dt}'",
		"--param", "dt=2024-01-01",
		"--pre", "set search_path to report",
		"--priority", "high",
		"--timeout", "30",
		"--timeout-strategy", "warn",
		"--display-rows", "50",
	)
	require.NoError(t, err)

	var def map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &def))
	assert.Equal(t, "daily", def["name"])
	assert.Equal(t, "SQL", def["taskType"])
	assert.Equal(t, "HIGH", def["taskPriority"])
	assert.Equal(t, "OPEN", def["timeoutFlag"])
	assert.Equal(t, float64(30), def["timeout"])
	assert.Equal(t, "WARN", def["timeoutNotifyStrategy"])
	assert.Equal(t, float64(1), def["version"])
	assert.Greater(t, def["code"].(float64), float64(0))

	params := def["taskParams"].(map[string]interface{})
	assert.Equal(t, float64(7), params["datasource"])
	assert.Equal(t, "POSTGRESQL", params["type"])
	assert.Equal(t, "0", params["sqlType"])
	assert.Equal(t, float64(50), params["displayRows"])
	assert.Equal(t, []interface{}{"set search_path to report"}, params["preStatements"])

	local := params["localParams"].([]interface{})
	require.Len(t, local, 1)
	assert.Equal(t, "dt", local[0].(map[string]interface{})["prop"])
	assert.Equal(t, "IN", local[0].(map[string]interface{})["direct"])
}

func TestDefineCommandJSON(t *testing.T) {
	srv := newDatasourceAPI(t)

	out, _, err := run(t, "define", "--json",
		"--endpoint", srv.URL,
		"--name", "cleanup",
		"--datasource", "ds_pg",
		"--sql", "truncate table staging",
	)
	require.NoError(t, err)

	var resp struct {
		Definition struct {
			TaskParams struct {
				SQLType string `json:"sqlType"`
			} `json:"taskParams"`
		} `json:"definition"`
		Submit interface{} `json:"submit"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "1", resp.Definition.TaskParams.SQLType)
	assert.Nil(t, resp.Submit)
}

func TestDefineCommandErrors(t *testing.T) {
	srv := newDatasourceAPI(t)

	_, _, err := run(t, "define", "--endpoint", srv.URL, "--name", "x", "--datasource", "missing", "--sql", "select 1")
	assert.ErrorContains(t, err, "missing")

	_, _, err = run(t, "define", "--endpoint", srv.URL, "--name", "x", "--datasource", "ds_pg", "--sql", "   ")
	assert.Error(t, err)

	_, _, err = run(t, "define", "--endpoint", srv.URL, "--name", "x", "--datasource", "ds_pg", "--sql", "select 1", "--param", "novalue")
	assert.ErrorContains(t, err, "expected name=value")

	_, _, err = run(t, "define", "--name", "x", "--datasource", "ds_pg", "--sql", "select 1")
	assert.Error(t, err, "no datasource endpoint configured")

	_, _, err = run(t, "define", "--datasource", "ds_pg", "--sql", "select 1")
	assert.ErrorContains(t, err, "name")

	_, _, err = run(t, "define", "--endpoint", srv.URL, "--name", "x", "--datasource", "ds_pg",
		"--sql", "select 1", "--sql-file", "a.sql")
	assert.Error(t, err)
}

func TestDefineCommandWithConfigFile(t *testing.T) {
	srv := newDatasourceAPI(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ztask.yaml")
	cfg := strings.Join([]string{
		"log:",
		"  level: error",
		"  output_paths: [" + filepath.Join(dir, "ztask.log") + "]",
		"datasource:",
		"  backend: http",
		"  http:",
		"    endpoint: " + srv.URL,
		"task:",
		"  worker_group: etl",
		"metrics:",
		"  enabled: false",
	}, "\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, _, err := run(t, "--config", cfgPath, "define", "--name", "n", "--datasource", "ds_pg", "--sql", "select 1")
	require.NoError(t, err)

	var def map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &def))
	assert.Equal(t, "etl", def["workerGroup"])
}

func TestSpoolReplayRequiresSpool(t *testing.T) {
	_, _, err := run(t, "spool", "replay", "--endpoint", "http://127.0.0.1:1")
	assert.ErrorContains(t, err, "spool is not enabled")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    "+Version)
	assert.Contains(t, out, "Git Commit:")
}

func TestClassifyCommandSQLPathArgument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.sql")
	require.NoError(t, os.WriteFile(path, []byte("select count(*) from orders"), 0o644))

	out, _, err := run(t, "classify", path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT\n", out)
}

func TestDefineCommandKeepsConfiguredRetryInterval(t *testing.T) {
	srv := newDatasourceAPI(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ztask.yaml")
	cfg := strings.Join([]string{
		"log:",
		"  level: error",
		"  output_paths: [" + filepath.Join(dir, "ztask.log") + "]",
		"datasource:",
		"  http:",
		"    endpoint: " + srv.URL,
		"task:",
		"  fail_retry_interval: 5",
		"metrics:",
		"  enabled: false",
	}, "\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	sqlPath := filepath.Join(dir, "etl.sql")
	require.NoError(t, os.WriteFile(sqlPath, []byte("insert into t select * from s"), 0o644))

	out, _, err := run(t, "--config", cfgPath, "define",
		"--name", "etl", "--datasource", "ds_pg", "--sql", sqlPath,
		"--retry-times", "3",
		"--dependence", `{"relation":"AND","dependTaskList":[{"relation":"OR"}]}`,
	)
	require.NoError(t, err)

	var def map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &def))
	assert.Equal(t, float64(3), def["failRetryTimes"])
	assert.Equal(t, float64(5), def["failRetryInterval"])

	params := def["taskParams"].(map[string]interface{})
	assert.Equal(t, "insert into t select * from s", params["sql"])
	assert.Equal(t, "1", params["sqlType"])
	assert.Equal(t, "AND", params["dependence"].(map[string]interface{})["relation"])

	_, _, err = run(t, "--config", cfgPath, "define",
		"--name", "etl", "--datasource", "ds_pg", "--sql", "select 1", "--dependence", "{not json")
	assert.ErrorContains(t, err, "invalid --dependence")
}
