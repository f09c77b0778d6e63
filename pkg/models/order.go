package models

// Order is an immutable record of a completed sale. Items carry the product
// fields as they were when the order was placed.
type Order struct {
	ID        string      `json:"id" mapstructure:"-"`
	ShopID    string      `json:"shopId" mapstructure:"shopId"`
	ShopName  string      `json:"shopName" mapstructure:"shopName"`
	Items     []OrderItem `json:"items" mapstructure:"items"`
	Total     float64     `json:"total" mapstructure:"total"`
	Date      string      `json:"date" mapstructure:"date"`
	Timestamp int64       `json:"timestamp" mapstructure:"timestamp"`
}

type OrderItem struct {
	Name     string  `json:"name" mapstructure:"name"`
	Size     string  `json:"size" mapstructure:"size"`
	Price    float64 `json:"price" mapstructure:"price"`
	Qty      int     `json:"qty" mapstructure:"qty"`
	Subtotal float64 `json:"subtotal" mapstructure:"subtotal"`
}

// OrderDraft is the payload handed to the store when a cart is submitted.
// Date and timestamp are stamped on write.
type OrderDraft struct {
	ShopID   string      `json:"shopId"`
	ShopName string      `json:"shopName"`
	Items    []OrderItem `json:"items"`
	Total    float64     `json:"total"`
}

func (d OrderDraft) Fields() map[string]any {
	items := make([]any, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, map[string]any{
			"name":     it.Name,
			"size":     it.Size,
			"price":    it.Price,
			"qty":      it.Qty,
			"subtotal": it.Subtotal,
		})
	}
	return map[string]any{
		"shopId":   d.ShopID,
		"shopName": d.ShopName,
		"items":    items,
		"total":    d.Total,
	}
}
