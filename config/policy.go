package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// AccessPolicy is the optional YAML override for the edge rules and the
// non-admin intent allow list:
//
//	public: [/auth-service/api/auth/login, /healthz]
//	admin: [/produit-service/produits]
//	userIntents: [LIST_PRODUCTS, GET_PRODUCT]
type AccessPolicy struct {
	Public      []string          `yaml:"public"`
	Admin       []string          `yaml:"admin"`
	Routes      map[string]string `yaml:"routes"`
	UserIntents []string          `yaml:"userIntents"`
}

// LoadAccessPolicy reads and decodes a policy file. Unknown keys are rejected.
func LoadAccessPolicy(path string) (*AccessPolicy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open access policy: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var policy AccessPolicy
	if err := dec.Decode(&policy); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode access policy %s: %w", path, err)
	}
	return &policy, nil
}

// Apply overrides the sections the policy sets. Absent sections keep the
// environment values.
func (p *AccessPolicy) Apply(cfg *Config) {
	if p.Public != nil {
		cfg.Gateway.PublicPaths = p.Public
	}
	if p.Admin != nil {
		cfg.Gateway.AdminPaths = p.Admin
	}
	if len(p.Routes) > 0 {
		cfg.Gateway.Routes = p.Routes
	}
	if p.UserIntents != nil {
		cfg.Chat.UserIntents = p.UserIntents
	}
}
