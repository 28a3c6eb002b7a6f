// Package routing implements the Operator routing matrix: it maps a task
// intent to the organization that owns its functional domain.
package routing

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"blackroad.io/operator/internal/logging"
	"blackroad.io/operator/internal/metrics"
	"blackroad.io/operator/models"
)

// NoMatchConfidence is reported when no keyword matches.
const NoMatchConfidence = 0.1

const noMatchReasoning = "No keyword match; defaulting to core OS organization."

// Matrix routes intents using a Catalog. It is safe for concurrent use.
type Matrix struct {
	mu      sync.RWMutex
	catalog *Catalog
	orgs    map[string]int
	logger  *zap.Logger
}

// NewMatrix validates cat and builds a matrix over it. A nil catalog uses
// DefaultCatalog.
func NewMatrix(cat *Catalog, logger *zap.Logger) (*Matrix, error) {
	if cat == nil {
		cat = DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Matrix{logger: logger}
	if err := m.Replace(cat); err != nil {
		return nil, err
	}
	return m, nil
}

// Replace swaps the matrix catalog after validating it.
func (m *Matrix) Replace(cat *Catalog) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	orgs := make(map[string]int, len(cat.Organizations))
	for i, org := range cat.Organizations {
		orgs[org.Name] = i
	}

	m.mu.Lock()
	m.catalog = cat
	m.orgs = orgs
	m.mu.Unlock()

	m.logger.Info("routing catalog loaded",
		zap.String(logging.FieldComponent, "routing"),
		zap.Int("organizations", len(cat.Organizations)),
		zap.Int("domains", len(cat.Domains)),
		zap.Int("keywords", len(cat.Keywords)),
		zap.Int("strategies", len(cat.Strategies)),
	)
	return nil
}

// Route scores the intent against the keyword table and returns the
// organization for the best-scoring domain.
//
// Each keyword found as a substring of the lowercased intent adds one to its
// domain. Ties go to the domain that scored first in table order.
func (m *Matrix) Route(intent string) models.RouteDecision {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lower := strings.ToLower(intent)
	scores := make(map[models.OrganizationDomain]int)
	var order []models.OrganizationDomain
	total := 0

	for _, kw := range m.catalog.Keywords {
		if !strings.Contains(lower, kw.Keyword) {
			continue
		}
		if _, seen := scores[kw.Domain]; !seen {
			order = append(order, kw.Domain)
		}
		scores[kw.Domain]++
		total++
	}

	if total == 0 {
		decision := models.RouteDecision{
			Organization: DefaultOrganization,
			Domain:       models.DomainOS,
			Confidence:   NoMatchConfidence,
			Reasoning:    noMatchReasoning,
		}
		metrics.RoutesTotal.WithLabelValues(string(decision.Domain), "false").Inc()
		return decision
	}

	best := order[0]
	for _, d := range order[1:] {
		if scores[d] > scores[best] {
			best = d
		}
	}

	confidence := math.Min(float64(scores[best])/float64(total), 1.0)

	orgName := DefaultOrganization
	for _, org := range m.catalog.Organizations {
		if org.Domain == best {
			orgName = org.Name
			break
		}
	}

	var matched []string
	for _, kw := range m.catalog.Keywords {
		if kw.Domain == best && strings.Contains(lower, kw.Keyword) {
			matched = append(matched, kw.Keyword)
		}
	}

	metrics.RoutesTotal.WithLabelValues(string(best), "true").Inc()
	return models.RouteDecision{
		Organization: orgName,
		Domain:       best,
		Confidence:   round2(confidence),
		Reasoning:    "Matched keywords: " + strings.Join(matched, ", "),
	}
}

// round2 rounds half to even at two decimals.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// GetOrganization looks up an organization by name.
func (m *Matrix) GetOrganization(name string) (models.Organization, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.orgs[name]
	if !ok {
		return models.Organization{}, false
	}
	return cloneOrg(m.catalog.Organizations[i]), true
}

// DomainsForOrganization returns the registered domains owned by an
// organization, in registry order. An unknown organization has none.
func (m *Matrix) DomainsForOrganization(name string) []models.DomainEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []models.DomainEntry{}
	for _, d := range m.catalog.Domains {
		if d.Organization == name {
			result = append(result, d)
		}
	}
	return result
}

// ListOrganizations returns every organization in registry order.
func (m *Matrix) ListOrganizations() []models.Organization {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Organization, 0, len(m.catalog.Organizations))
	for _, org := range m.catalog.Organizations {
		result = append(result, cloneOrg(org))
	}
	return result
}

// ListDomains returns every registered domain in registry order.
func (m *Matrix) ListDomains() []models.DomainEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.DomainEntry{}, m.catalog.Domains...)
}

// Keywords returns the keyword table in walk order.
func (m *Matrix) Keywords() []Keyword {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Keyword{}, m.catalog.Keywords...)
}

// Strategies returns the rate-limit mitigation strategies.
func (m *Matrix) Strategies() []models.RateLimitStrategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.RateLimitStrategy{}, m.catalog.Strategies...)
}

// Strategy returns the strategy for provider.
func (m *Matrix) Strategy(provider string) (models.RateLimitStrategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.catalog.Strategies {
		if s.Provider == provider {
			return s, nil
		}
	}
	return models.RateLimitStrategy{}, fmt.Errorf("%w: %s", models.ErrStrategyNotFound, provider)
}

func cloneOrg(org models.Organization) models.Organization {
	org.Repositories = append([]string(nil), org.Repositories...)
	return org
}
