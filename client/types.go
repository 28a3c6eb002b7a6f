package sdk

import (
	"encoding/json"

	"blackroad.io/operator/models"
)

// envelope is the operator's response wrapper. Success responses carry
// Data; error responses carry Error, Message and RequestID.
type envelope struct {
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// HealthStatus is the liveness probe response.
type HealthStatus struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Version    string `json:"version,omitempty"`
}

// StrategyInfo is a rate-limit strategy with its resolved proxy URL.
type StrategyInfo struct {
	models.RateLimitStrategy
	EffectiveProxyURL string `json:"effective_proxy_url,omitempty"`
}

// LedgerQuery filters a ledger listing. Zero values list from the start of
// the chain with the server's default limit.
type LedgerQuery struct {
	TaskID string
	After  int64
	Limit  int
}
