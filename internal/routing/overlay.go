package routing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"blackroad.io/operator/models"
)

// LoadCatalog reads a YAML overlay from path and merges it onto the
// built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	overlay, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	cat := DefaultCatalog()
	cat.Merge(overlay)
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes a YAML catalog document. Unknown fields are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	for i := range cat.Keywords {
		cat.Keywords[i].Keyword = strings.ToLower(cat.Keywords[i].Keyword)
	}
	return &cat, nil
}

// Merge applies overlay onto c. Organizations upsert by name, domains by
// domain name, keywords by keyword and strategies by provider. Replacements
// keep their position; new entries are appended.
func (c *Catalog) Merge(overlay *Catalog) {
	if overlay == nil {
		return
	}

	for _, org := range overlay.Organizations {
		if i := indexOf(c.Organizations, func(o models.Organization) bool { return o.Name == org.Name }); i >= 0 {
			c.Organizations[i] = org
		} else {
			c.Organizations = append(c.Organizations, org)
		}
	}
	for _, d := range overlay.Domains {
		if i := indexOf(c.Domains, func(e models.DomainEntry) bool { return e.Domain == d.Domain }); i >= 0 {
			c.Domains[i] = d
		} else {
			c.Domains = append(c.Domains, d)
		}
	}
	for _, kw := range overlay.Keywords {
		if i := indexOf(c.Keywords, func(k Keyword) bool { return k.Keyword == kw.Keyword }); i >= 0 {
			c.Keywords[i] = kw
		} else {
			c.Keywords = append(c.Keywords, kw)
		}
	}
	for _, s := range overlay.Strategies {
		if i := indexOf(c.Strategies, func(e models.RateLimitStrategy) bool { return e.Provider == s.Provider }); i >= 0 {
			c.Strategies[i] = s
		} else {
			c.Strategies = append(c.Strategies, s)
		}
	}
}

// Validate checks that names are unique and every reference resolves.
func (c *Catalog) Validate() error {
	orgs := make(map[string]bool, len(c.Organizations))
	for _, org := range c.Organizations {
		if org.Name == "" {
			return fmt.Errorf("%w: organization with empty name", models.ErrInvalidRequest)
		}
		if orgs[org.Name] {
			return fmt.Errorf("%w: duplicate organization %q", models.ErrInvalidRequest, org.Name)
		}
		if !org.Domain.Valid() {
			return fmt.Errorf("%w: organization %q has unknown domain %q", models.ErrInvalidRequest, org.Name, org.Domain)
		}
		orgs[org.Name] = true
	}
	if !orgs[DefaultOrganization] {
		return fmt.Errorf("%w: default organization %q is missing", models.ErrInvalidRequest, DefaultOrganization)
	}

	for _, d := range c.Domains {
		if d.Domain == "" {
			return fmt.Errorf("%w: domain entry with empty name", models.ErrInvalidRequest)
		}
		if !orgs[d.Organization] {
			return fmt.Errorf("%w: domain %q references unknown organization %q", models.ErrInvalidRequest, d.Domain, d.Organization)
		}
	}

	for _, kw := range c.Keywords {
		if kw.Keyword == "" {
			return fmt.Errorf("%w: empty keyword", models.ErrInvalidRequest)
		}
		if kw.Keyword != strings.ToLower(kw.Keyword) {
			return fmt.Errorf("%w: keyword %q must be lowercase", models.ErrInvalidRequest, kw.Keyword)
		}
		if !kw.Domain.Valid() {
			return fmt.Errorf("%w: keyword %q maps to unknown domain %q", models.ErrInvalidRequest, kw.Keyword, kw.Domain)
		}
	}

	providers := make(map[string]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		if s.Provider == "" || providers[s.Provider] {
			return fmt.Errorf("%w: empty or duplicate strategy provider %q", models.ErrInvalidRequest, s.Provider)
		}
		providers[s.Provider] = true
	}
	return nil
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}
