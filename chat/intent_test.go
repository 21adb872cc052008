package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"list products", ListProducts},
		{"Please LIST all PRODUCTS", ListProducts},
		{"product detail for 3", GetProduct},
		{"show me the details of product 3", GetProduct},
		{"list product details", ListProducts},
		{"show clients", ListClients},
		{"list clients", ListClients},
		{"client orders", ListClients},
		{"my orders", ListOrders},
		{"mes commandes", ListOrders},
		{"les ordres", ListOrders},
		{"create a product", CreateProduct},
		{"add laptop", CreateProduct},
		{"update product 3", UpdateProduct},
		{"modify the price", UpdateProduct},
		{"delete product 3", DeleteProduct},
		{"remove item", DeleteProduct},
		{"what is my address", CreateProduct},
		{"hello", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Equal(t, DeleteProduct, Classify("delete product 3"))
	}
}

func TestParseIntent(t *testing.T) {
	for _, i := range AllIntents() {
		got, ok := ParseIntent(string(i))
		assert.True(t, ok)
		assert.Equal(t, i, got)
	}

	got, ok := ParseIntent(" list_products ")
	assert.True(t, ok)
	assert.Equal(t, ListProducts, got)

	got, ok = ParseIntent("DROP_TABLE")
	assert.False(t, ok)
	assert.Equal(t, Unknown, got)
}
