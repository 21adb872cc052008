package gateway

import (
	"fmt"
	"path"
	"strings"
)

// Requirement is the authentication level a path demands
type Requirement int

const (
	// Authenticated is the default for any path not matched by a rule
	Authenticated Requirement = iota
	Public
	AdminOnly
)

// String returns the lowercase name used in logs and metrics
func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case AdminOnly:
		return "admin_only"
	default:
		return "authenticated"
	}
}

// PathRule binds a path prefix to a requirement
type PathRule struct {
	Pattern     string
	Requirement Requirement
}

// RuleSet is the immutable, normalized route table consulted by the edge enforcer
type RuleSet struct {
	public []string
	admin  []string
}

// NewRuleSet builds a rule set from the public and admin-only pattern lists.
// Patterns are normalized the same way request paths are.
func NewRuleSet(public, admin []string) (*RuleSet, error) {
	rs := &RuleSet{}
	for _, p := range public {
		n, err := normalizePattern(p)
		if err != nil {
			return nil, err
		}
		rs.public = append(rs.public, n)
	}
	for _, p := range admin {
		n, err := normalizePattern(p)
		if err != nil {
			return nil, err
		}
		rs.admin = append(rs.admin, n)
	}
	return rs, nil
}

// Rules returns the configured rules, public first
func (rs *RuleSet) Rules() []PathRule {
	rules := make([]PathRule, 0, len(rs.public)+len(rs.admin))
	for _, p := range rs.public {
		rules = append(rules, PathRule{Pattern: p, Requirement: Public})
	}
	for _, p := range rs.admin {
		rules = append(rules, PathRule{Pattern: p, Requirement: AdminOnly})
	}
	return rules
}

// Classify returns the requirement for a request path. Public rules are
// tested before admin rules; unmatched paths require authentication.
func (rs *RuleSet) Classify(requestPath string) Requirement {
	key := MatchKey(requestPath)
	for _, p := range rs.public {
		if HasSegmentPrefix(key, p) {
			return Public
		}
	}
	for _, p := range rs.admin {
		if HasSegmentPrefix(key, p) {
			return AdminOnly
		}
	}
	return Authenticated
}

// CleanPath strips ";param" suffixes from every segment, resolves dot
// segments, collapses repeated slashes and drops any trailing slash. Case is
// preserved so the result can be forwarded; the enforcer forwards exactly
// the form it classified.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(stripParams(p))
}

// stripParams drops path parameters: "/a;x/b;y=1" becomes "/a/b"
func stripParams(p string) string {
	if !strings.Contains(p, ";") {
		return p
	}
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if j := strings.IndexByte(seg, ';'); j >= 0 {
			segments[i] = seg[:j]
		}
	}
	return strings.Join(segments, "/")
}

// MatchKey is the case-insensitive form of CleanPath used for rule matching
func MatchKey(p string) string {
	return strings.ToLower(CleanPath(p))
}

// HasSegmentPrefix reports whether key equals prefix or continues it at a
// segment boundary. "/a/b" matches "/a/b" and "/a/b/c" but never "/a/bc".
func HasSegmentPrefix(key, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	return len(key) == len(prefix) || key[len(prefix)] == '/'
}

func normalizePattern(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("empty path pattern")
	}
	if strings.ContainsAny(p, "*?") {
		return "", fmt.Errorf("path pattern %q: wildcards are not supported, use a prefix", p)
	}
	return MatchKey(p), nil
}
