package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpense_AmountValue(t *testing.T) {
	tests := []struct {
		name   string
		amount any
		want   float64
	}{
		{"float", 250.5, 250.5},
		{"int", 300, 300},
		{"int64", int64(42), 42},
		{"numeric string", "120", 120},
		{"garbage string", "lunch", 0},
		{"empty string", "", 0},
		{"nil", nil, 0},
		{"map", map[string]any{"x": 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expense{Amount: tt.amount}.AmountValue())
		})
	}
}

func TestFindProduct(t *testing.T) {
	catalog := []Product{{ID: "a", Name: "X"}, {ID: "b", Name: "Y"}}

	p, ok := FindProduct(catalog, "b")
	assert.True(t, ok)
	assert.Equal(t, "Y", p.Name)

	_, ok = FindProduct(catalog, "zzz")
	assert.False(t, ok)
}

func TestOrderDraft_Fields(t *testing.T) {
	d := OrderDraft{
		ShopID:   "s1",
		ShopName: "CORNER STORE",
		Items:    []OrderItem{{Name: "X", Size: "500G", Price: 100, Qty: 3, Subtotal: 300}},
		Total:    300,
	}
	f := d.Fields()
	assert.Equal(t, "s1", f["shopId"])
	assert.Equal(t, 300.0, f["total"])
	items := f["items"].([]any)
	assert.Len(t, items, 1)
	assert.Equal(t, 3, items[0].(map[string]any)["qty"])
}
