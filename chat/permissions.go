package chat

import (
	"fmt"
	"sort"
	"strings"
)

// PermissionTable says which intents the non-admin tier may run. It always
// has an entry for every intent; admins bypass it entirely.
type PermissionTable struct {
	allowed map[Intent]bool
}

// DefaultPermissions allows non-admins to read products and nothing else
func DefaultPermissions() *PermissionTable {
	t, _ := NewPermissionTable(map[Intent]bool{
		ListProducts:  true,
		GetProduct:    true,
		ListClients:   false,
		ListOrders:    false,
		CreateProduct: false,
		UpdateProduct: false,
		DeleteProduct: false,
		Unknown:       false,
	})
	return t
}

// NewPermissionTable builds a table. Every intent must be present.
func NewPermissionTable(entries map[Intent]bool) (*PermissionTable, error) {
	var missing []string
	for _, i := range AllIntents() {
		if _, ok := entries[i]; !ok {
			missing = append(missing, string(i))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("permission table missing intents: %s", strings.Join(missing, ", "))
	}

	allowed := make(map[Intent]bool, len(entries))
	for i, ok := range entries {
		if _, known := ParseIntent(string(i)); !known {
			return nil, fmt.Errorf("permission table has unknown intent %q", i)
		}
		allowed[i] = ok
	}
	return &PermissionTable{allowed: allowed}, nil
}

// PermissionTableFromAllowList builds a table where only the named intents are allowed
func PermissionTableFromAllowList(names []string) (*PermissionTable, error) {
	entries := make(map[Intent]bool, len(AllIntents()))
	for _, i := range AllIntents() {
		entries[i] = false
	}
	for _, n := range names {
		i, ok := ParseIntent(n)
		if !ok {
			return nil, fmt.Errorf("unknown intent %q", n)
		}
		entries[i] = true
	}
	return NewPermissionTable(entries)
}

// Allows reports whether a non-admin may run intent. Unknown values are denied.
func (t *PermissionTable) Allows(intent Intent) bool {
	if t == nil {
		return false
	}
	return t.allowed[intent]
}

// Allowed lists the permitted intents in declaration order
func (t *PermissionTable) Allowed() []Intent {
	var out []Intent
	for _, i := range AllIntents() {
		if t.Allows(i) {
			out = append(out, i)
		}
	}
	return out
}
