// Package approval issues and verifies the signed tokens that resume a
// scaffold step paused for manual approval.
//
// A token is an HS256 JWT bound to a task, a step and the task's witness
// hash at the moment of the pause. Any later transition changes the witness
// hash, so a token can resume exactly one pause.
package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blackroad.io/operator/models"
)

const (
	// DefaultIssuer is the iss claim of approval tokens.
	DefaultIssuer = "blackroad-operator"

	// Audience is the aud claim of approval tokens.
	Audience = "scaffold-approval"

	// MinKeyLength is the minimum HS256 key length.
	MinKeyLength = 32
)

// Config configures a Manager.
type Config struct {
	Key    []byte
	TTL    time.Duration
	Issuer string

	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration
}

// Claims are the approval token claims.
type Claims struct {
	TaskID      string `json:"task_id"`
	Step        string `json:"step"`
	WitnessHash string `json:"wh"`
	Reason      string `json:"reason,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies approval tokens.
type Manager struct {
	cfg Config
	now func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Key) < MinKeyLength {
		return nil, fmt.Errorf("approval key must be at least %d bytes", MinKeyLength)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("approval TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// Issue signs a token approving step of taskID while the task has witnessHash.
func (m *Manager) Issue(taskID, step, witnessHash, reason string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.cfg.TTL)

	claims := Claims{
		TaskID:      taskID,
		Step:        step,
		WitnessHash: witnessHash,
		Reason:      reason,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   taskID,
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign approval token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the signature, issuer, audience and expiry of tokenStr and
// that it approves step of taskID at witnessHash. Every failure wraps
// models.ErrInvalidApproval.
func (m *Manager) Verify(tokenStr, taskID, step, witnessHash string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.cfg.Leeway))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.Key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidApproval, err)
	}
	if !token.Valid {
		return nil, models.ErrInvalidApproval
	}

	switch {
	case claims.TaskID != taskID:
		return nil, fmt.Errorf("%w: token is for another task", models.ErrInvalidApproval)
	case claims.Step != step:
		return nil, fmt.Errorf("%w: token is for step %s", models.ErrInvalidApproval, claims.Step)
	case claims.WitnessHash != witnessHash:
		return nil, fmt.Errorf("%w: task changed since the token was issued", models.ErrInvalidApproval)
	}
	return claims, nil
}
