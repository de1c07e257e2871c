package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"formautofill/models"
)

// DomainMappingStore keeps per-site overrides under "domain:<host>" keys.
type DomainMappingStore struct {
	kv  KV
	now func() time.Time
}

func NewDomainMappingStore(kv KV) *DomainMappingStore {
	return &DomainMappingStore{kv: kv, now: time.Now}
}

// Get returns the mapping for a domain, or nil when there is none.
func (s *DomainMappingStore) Get(ctx context.Context, domain string) (*models.DomainMapping, error) {
	data, err := s.kv.Get(ctx, domainPrefix+normalizeDomain(domain))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m models.DomainMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode domain mapping: %w", err)
	}
	if m.FieldMappings == nil {
		m.FieldMappings = map[string]string{}
	}
	return &m, nil
}

func (s *DomainMappingStore) Save(ctx context.Context, m *models.DomainMapping) error {
	if m == nil || m.Domain == "" {
		return fmt.Errorf("domain mapping needs a domain")
	}
	m.Domain = normalizeDomain(m.Domain)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode domain mapping: %w", err)
	}
	return s.kv.Set(ctx, domainPrefix+m.Domain, data)
}

// Learn records that selector on domain should be filled from path.
func (s *DomainMappingStore) Learn(ctx context.Context, domain, selector, path string) (*models.DomainMapping, error) {
	m, err := s.Get(ctx, domain)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &models.DomainMapping{Domain: domain, FieldMappings: map[string]string{}}
	}
	m.FieldMappings[selector] = path
	m.LastUsed = s.now().UnixMilli()
	if err := s.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *DomainMappingStore) Delete(ctx context.Context, domain string) error {
	return s.kv.Delete(ctx, domainPrefix+normalizeDomain(domain))
}

func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}
