package cart

import (
	"sync"

	"github.com/example/monarch/pkg/models"
)

// Line is one product selection in the cart.
type Line struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// Cart is the process-local selection of product quantities. Quantities never
// go below zero; ids keep the order in which they were first touched.
type Cart struct {
	mu    sync.Mutex
	qty   map[string]int
	order []string
}

func New() *Cart {
	return &Cart{qty: make(map[string]int)}
}

func (c *Cart) Increment(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.qty[productID]; !ok {
		c.order = append(c.order, productID)
	}
	c.qty[productID]++
	return c.qty[productID]
}

func (c *Cart) Decrement(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.qty[productID]; !ok {
		c.order = append(c.order, productID)
	}
	c.qty[productID] = max(0, c.qty[productID]-1)
	return c.qty[productID]
}

func (c *Cart) Quantity(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qty[productID]
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qty = make(map[string]int)
	c.order = nil
}

// Lines returns every touched product, zero quantities included.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		lines = append(lines, Line{ProductID: id, Qty: c.qty[id]})
	}
	return lines
}

// BuildOrder snapshots name, size and price of every selected product into
// order items. Zero quantities and products missing from the catalog are
// skipped. It reports false when no item remains.
//
// subtotal == price*qty and total == sum of subtotals hold exactly on the
// float64 values that get stored.
func BuildOrder(shop models.Shop, lines []Line, catalog []models.Product) (models.OrderDraft, bool) {
	items := make([]models.OrderItem, 0, len(lines))
	var total float64

	for _, l := range lines {
		if l.Qty <= 0 {
			continue
		}
		p, ok := models.FindProduct(catalog, l.ProductID)
		if !ok {
			continue
		}
		subtotal := p.Price * float64(l.Qty)
		total += subtotal
		items = append(items, models.OrderItem{
			Name:     p.Name,
			Size:     p.Size,
			Price:    p.Price,
			Qty:      l.Qty,
			Subtotal: subtotal,
		})
	}

	if len(items) == 0 {
		return models.OrderDraft{}, false
	}
	return models.OrderDraft{
		ShopID:   shop.ID,
		ShopName: shop.Name,
		Items:    items,
		Total:    total,
	}, true
}

// Total previews the cart value at current catalog prices. Products no
// longer in the catalog count as zero.
func Total(lines []Line, catalog []models.Product) float64 {
	var total float64
	for _, l := range lines {
		p, ok := models.FindProduct(catalog, l.ProductID)
		if !ok {
			continue
		}
		total += p.Price * float64(l.Qty)
	}
	return total
}
