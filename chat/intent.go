// Package chat implements the conversational endpoint's authorization:
// intent classification, the per-tier permission table, prompt policies
// and the bounded conversation memory.
package chat

import "strings"

// Intent is the coarse action category inferred from a chat message
type Intent string

const (
	ListProducts  Intent = "LIST_PRODUCTS"
	GetProduct    Intent = "GET_PRODUCT"
	ListClients   Intent = "LIST_CLIENTS"
	ListOrders    Intent = "LIST_ORDERS"
	CreateProduct Intent = "CREATE_PRODUCT"
	UpdateProduct Intent = "UPDATE_PRODUCT"
	DeleteProduct Intent = "DELETE_PRODUCT"
	Unknown       Intent = "UNKNOWN"
)

// AllIntents lists every intent, Unknown last
func AllIntents() []Intent {
	return []Intent{
		ListProducts, GetProduct, ListClients, ListOrders,
		CreateProduct, UpdateProduct, DeleteProduct, Unknown,
	}
}

// ParseIntent returns the intent named s, case-insensitively
func ParseIntent(s string) (Intent, bool) {
	name := Intent(strings.ToUpper(strings.TrimSpace(s)))
	for _, i := range AllIntents() {
		if i == name {
			return i, true
		}
	}
	return Unknown, false
}

type intentRule struct {
	intent Intent
	match  func(m string) bool
}

func containsAll(words ...string) func(string) bool {
	return func(m string) bool {
		for _, w := range words {
			if !strings.Contains(m, w) {
				return false
			}
		}
		return true
	}
}

func containsAny(words ...string) func(string) bool {
	return func(m string) bool {
		for _, w := range words {
			if strings.Contains(m, w) {
				return true
			}
		}
		return false
	}
}

// classifierRules are evaluated in order; the first match wins.
// Matching is plain substring containment, so "address" matches "add".
var classifierRules = []intentRule{
	{ListProducts, containsAll("list", "product")},
	{GetProduct, containsAll("product", "detail")},
	{ListClients, containsAny("client")},
	{ListOrders, containsAny("order", "commande", "ordre")},
	{CreateProduct, containsAny("create", "add")},
	{UpdateProduct, containsAny("update", "modify")},
	{DeleteProduct, containsAny("delete", "remove")},
}

// Classify maps a free-text message to an intent. It is total and
// deterministic: unmatched messages are Unknown.
func Classify(message string) Intent {
	m := strings.ToLower(message)
	for _, r := range classifierRules {
		if r.match(m) {
			return r.intent
		}
	}
	return Unknown
}
