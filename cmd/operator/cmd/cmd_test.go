package cmd

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

	"blackroad.io/operator/internal/database"
	"blackroad.io/operator/models"
	"blackroad.io/operator/pkg/token"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput, verbose = false, false
	serverURLs, adminToken = "http://localhost:8080", ""
	tokenSecret = ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Operator dev (commit: none")
	assert.Contains(t, out, "Go: go")
}

func TestTokenGenerate(t *testing.T) {
	secret := "cli-test-secret-that-is-32-bytes-long"
	out, err := execute(t, "token", "generate", "--secret", secret, "--json")
	require.NoError(t, err)

	var got tokenOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NoError(t, token.CheckFormat(got.Token))
	assert.Equal(t, token.Digest(got.Token, secret), got.Digest)

	_, err = execute(t, "token", "generate", "--secret", "short")
	assert.Error(t, err)
}

func TestCatalogValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
keywords:
  - keyword: robotics
    domain: hardware
`), 0o600))

	out, err := execute(t, "catalog", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "Keywords:      53")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
keywords:
  - keyword: robotics
    domain: spaceships
`), 0o600))
	out, err = execute(t, "catalog", "validate", bad)
	require.Error(t, err)
	assert.Contains(t, out, "unknown domain")
}

func TestPolicyList_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/policies", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("include_disabled"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []models.PolicyRule{{
				RuleID:    "admin_access",
				Name:      "Admin Access",
				Condition: `resource startsWith "/admin"`,
				Action:    models.ActionDeny,
				Priority:  100,
			}},
		})
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "policy", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Policy rules (1)")
	assert.Contains(t, out, "admin_access")
	assert.Contains(t, out, "[disabled]")
}

func TestTaskCreate_RequiresToken(t *testing.T) {
	_, err := execute(t, "task", "create", "deploy", "the", "site")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing authentication")
}

func TestPolicyEval_BadContext(t *testing.T) {
	_, err := execute(t, "policy", "eval", "user:bob", "/x", "--ctx", "novalue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=value")
}

func TestDBStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operator.db")

	out, err := execute(t, "db", "stats", "--db", path, "--json")
	require.NoError(t, err)

	var counts []database.TableCount
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	require.Len(t, counts, len(database.Tables))
	for _, c := range counts {
		assert.Zero(t, c.Rows, c.Table)
	}

	out, err = execute(t, "db", "verify-ledger", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ledger verified: 0 entries")
}

func TestParseKV(t *testing.T) {
	got, err := parseKV([]string{"team=platform", "high_risk=true", "dry=false", "expr=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"team":      "platform",
		"high_risk": true,
		"dry":       false,
		"expr":      "a=b",
	}, got)

	got, err = parseKV(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseKV([]string{"=x"})
	assert.Error(t, err)
}
