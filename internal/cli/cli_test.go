package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/engine"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const campaignsJSON = `[
  {"id": "1", "name": "Winner", "budget": 500, "roas": 5, "cpa": 10, "status": "ACTIVE", "isSurfScaling": true, "sourceIds": {"meta": "1"}},
  {"id": "2", "name": "Idle", "budget": 300, "roas": 9, "status": "ACTIVE", "isSurfScaling": false, "sourceIds": {"meta": "2"}}
]`

func TestEvaluate_DefaultRules(t *testing.T) {
	cs := writeFile(t, "campaigns.json", campaignsJSON)
	out, err := run(t, "evaluate", "--campaigns", cs)
	require.NoError(t, err)

	var res engine.CycleResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "High ROAS Scaler", res.Logs[0].Action)
	assert.InDelta(t, 600, res.Campaigns[0].Budget, 1e-9)
	assert.Equal(t, 300.0, res.Campaigns[1].Budget)
}

func TestEvaluate_RulesFile(t *testing.T) {
	cs := writeFile(t, "campaigns.json", campaignsJSON)
	rules := writeFile(t, "rules.yaml", `
rules:
  - id: cut
    name: Trim
    enabled: true
    conditions:
      - metric: CPA
        operator: ">="
        value: 10
    action:
      type: DECREASE_BUDGET
      value: 10
`)
	out, err := run(t, "evaluate", "--campaigns", cs, "--rules", rules)
	require.NoError(t, err)

	var res engine.CycleResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Logs, 1)
	assert.InDelta(t, 450, res.Campaigns[0].Budget, 1e-9)
}

func TestEvaluate_Errors(t *testing.T) {
	cs := writeFile(t, "campaigns.json", campaignsJSON)
	bad := writeFile(t, "bad.json", `{"not": "an array"}`)

	_, err := run(t, "evaluate")
	assert.Error(t, err, "campaigns flag is required")
	_, err = run(t, "evaluate", "--campaigns", bad)
	assert.Error(t, err)
	_, err = run(t, "evaluate", "--campaigns", cs, "--snapshot", "hourly")
	assert.Error(t, err)
}

func TestTestConnection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "invalid api key"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()
	t.Setenv("APP_TRIPLE_WHALE_BASE_URL", ts.URL)

	out, err := run(t, "test-connection", "--api-key", "good", "--store-id", "shop")
	require.NoError(t, err)
	assert.Contains(t, out, "connection OK")

	_, err = run(t, "test-connection", "--api-key", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestFetch_UnknownAccount(t *testing.T) {
	_, err := run(t, "fetch", "--account", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConfigFlag(t *testing.T) {
	_, err := run(t, "--config", "/does/not/exist.yaml", "evaluate", "--campaigns", "x.json")
	assert.Error(t, err)
}

func TestRulesApply(t *testing.T) {
	rules := writeFile(t, "rules.yaml", `
rules:
  - id: stop
    name: Stop losers
    enabled: true
    conditions:
      - metric: ROAS
        operator: "<"
        value: 1
    action:
      type: PAUSE_CAMPAIGN
`)
	out, err := run(t, "rules", "apply", "--file", rules)
	require.NoError(t, err)

	var got []engine.Rule
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, engine.ActionPause, got[0].Action.Type)

	_, err = run(t, "rules", "apply")
	assert.Error(t, err, "file flag is required")
}

func TestRulesList(t *testing.T) {
	out, err := run(t, "rules", "list")
	require.NoError(t, err)
	var got []engine.Rule
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, engine.DefaultRules(), got)
}

func TestAccountsImport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token."}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"act_9","name":"Imported","currency":"EUR"}]}`))
	}))
	defer ts.Close()
	t.Setenv("APP_META_BASE_URL", ts.URL)
	t.Setenv("APP_META_MAX_ATTEMPTS", "1")

	out, err := run(t, "accounts", "import", "--token", "good")
	require.NoError(t, err)
	var got []campaign.Account
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "act_9", got[0].ID)

	_, err = run(t, "accounts", "import", "--token", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token.")

	_, err = run(t, "accounts", "import")
	assert.Error(t, err, "no stored token in a fresh memory store")

	out, err = run(t, "accounts", "list")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}
