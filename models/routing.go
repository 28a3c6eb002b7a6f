package models

import "os"

// OrganizationDomain is the functional domain an organization owns.
type OrganizationDomain string

const (
	DomainCorporate   OrganizationDomain = "corporate"
	DomainAI          OrganizationDomain = "ai"
	DomainArchive     OrganizationDomain = "archive"
	DomainCloud       OrganizationDomain = "cloud"
	DomainEducation   OrganizationDomain = "education"
	DomainFoundation  OrganizationDomain = "foundation"
	DomainGov         OrganizationDomain = "gov"
	DomainHardware    OrganizationDomain = "hardware"
	DomainInteractive OrganizationDomain = "interactive"
	DomainLabs        OrganizationDomain = "labs"
	DomainMedia       OrganizationDomain = "media"
	DomainOS          OrganizationDomain = "os"
	DomainSecurity    OrganizationDomain = "security"
	DomainStudio      OrganizationDomain = "studio"
	DomainVentures    OrganizationDomain = "ventures"
)

// AllDomains lists the functional domains in declaration order.
var AllDomains = []OrganizationDomain{
	DomainCorporate, DomainAI, DomainArchive, DomainCloud, DomainEducation,
	DomainFoundation, DomainGov, DomainHardware, DomainInteractive, DomainLabs,
	DomainMedia, DomainOS, DomainSecurity, DomainStudio, DomainVentures,
}

// Valid reports whether d is a known functional domain.
func (d OrganizationDomain) Valid() bool {
	for _, known := range AllDomains {
		if d == known {
			return true
		}
	}
	return false
}

// Organization is a GitHub organization in the routing registry.
type Organization struct {
	Name           string             `json:"name" yaml:"name"`
	Domain         OrganizationDomain `json:"domain" yaml:"domain"`
	Responsibility string             `json:"responsibility" yaml:"responsibility"`
	Repositories   []string           `json:"repositories" yaml:"repositories"`
}

// DomainEntry is a registered internet domain and the organization that owns it.
type DomainEntry struct {
	Domain       string `json:"domain" yaml:"domain"`
	UseCase      string `json:"use_case" yaml:"use_case"`
	Organization string `json:"organization" yaml:"organization"`
}

// RouteRequest is the request body for routing an intent.
type RouteRequest struct {
	Intent string `json:"intent" binding:"required"`
}

// RouteDecision is the result of routing a task intent through the matrix.
type RouteDecision struct {
	Organization string             `json:"organization"`
	Domain       OrganizationDomain `json:"domain"`
	Confidence   float64            `json:"confidence"`
	Reasoning    string             `json:"reasoning"`
}

// RateLimitStrategy documents how an upstream provider's limit is mitigated.
type RateLimitStrategy struct {
	Provider      string `json:"provider" yaml:"provider"`
	ObservedLimit string `json:"observed_limit" yaml:"observed_limit"`
	Mitigation    string `json:"mitigation" yaml:"mitigation"`
	ProxyURL      string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty"`
	EnvVar        string `json:"env_var,omitempty" yaml:"env_var,omitempty"`
}

// EffectiveProxyURL returns the proxy override from EnvVar when it is set,
// otherwise the configured ProxyURL.
func (s RateLimitStrategy) EffectiveProxyURL() string {
	if s.EnvVar != "" {
		if v := os.Getenv(s.EnvVar); v != "" {
			return v
		}
	}
	return s.ProxyURL
}
