package approval

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackroad.io/operator/models"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{Key: testKey, TTL: time.Hour})
	require.NoError(t, err)
	return m
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Config{Key: []byte("short"), TTL: time.Hour})
	assert.Error(t, err)

	_, err = NewManager(Config{Key: testKey})
	assert.Error(t, err)

	_, err = NewManager(Config{Key: testKey, TTL: time.Hour, Leeway: time.Hour})
	assert.Error(t, err)

	m, err := NewManager(Config{Key: testKey, TTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, DefaultIssuer, m.cfg.Issuer)
}

func TestIssueVerify(t *testing.T) {
	m := newManager(t)

	tok, expires, err := m.Issue("task-1", "TASK_TO_TEAM", "hash-a", "high risk")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)
	assert.Equal(t, 2, strings.Count(tok, "."))

	claims, err := m.Verify(tok, "task-1", "TASK_TO_TEAM", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, "high risk", claims.Reason)
	assert.Equal(t, "task-1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestVerify_Rejects(t *testing.T) {
	m := newManager(t)
	tok, _, err := m.Issue("task-1", "TASK_TO_TEAM", "hash-a", "")
	require.NoError(t, err)

	other, err := NewManager(Config{Key: []byte("ffffffffffffffffffffffffffffffff"), TTL: time.Hour})
	require.NoError(t, err)
	forged, _, err := other.Issue("task-1", "TASK_TO_TEAM", "hash-a", "")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{TaskID: "task-1", Step: "TASK_TO_TEAM", WitnessHash: "hash-a"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		task  string
		step  string
		hash  string
	}{
		{"wrong task", tok, "task-2", "TASK_TO_TEAM", "hash-a"},
		{"wrong step", tok, "task-1", "INITIAL_REVIEWER", "hash-a"},
		{"task moved on", tok, "task-1", "TASK_TO_TEAM", "hash-b"},
		{"wrong key", forged, "task-1", "TASK_TO_TEAM", "hash-a"},
		{"alg none", unsigned, "task-1", "TASK_TO_TEAM", "hash-a"},
		{"garbage", "not.a.jwt", "task-1", "TASK_TO_TEAM", "hash-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token, tt.task, tt.step, tt.hash)
			assert.ErrorIs(t, err, models.ErrInvalidApproval)
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	m := newManager(t)
	issuedAt := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issuedAt }
	tok, _, err := m.Issue("task-1", "TASK_TO_TEAM", "h", "")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(tok, "task-1", "TASK_TO_TEAM", "h")
	assert.ErrorIs(t, err, models.ErrInvalidApproval)
	assert.Contains(t, err.Error(), "expired")
}

func TestVerify_IssuerMismatch(t *testing.T) {
	a, err := NewManager(Config{Key: testKey, TTL: time.Hour, Issuer: "cluster-a"})
	require.NoError(t, err)
	b, err := NewManager(Config{Key: testKey, TTL: time.Hour, Issuer: "cluster-b"})
	require.NoError(t, err)

	tok, _, err := a.Issue("t", "TASK_TO_TEAM", "h", "")
	require.NoError(t, err)
	_, err = b.Verify(tok, "t", "TASK_TO_TEAM", "h")
	assert.ErrorIs(t, err, models.ErrInvalidApproval)
}
