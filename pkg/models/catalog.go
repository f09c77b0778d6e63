package models

// Route is a named delivery path grouping shops.
type Route struct {
	ID   string `json:"id" mapstructure:"-"`
	Name string `json:"name" mapstructure:"name"`
}

// Shop is a customer outlet assigned to a route.
type Shop struct {
	ID      string `json:"id" mapstructure:"-"`
	Name    string `json:"name" mapstructure:"name"`
	Area    string `json:"area" mapstructure:"area"`
	RouteID string `json:"routeId" mapstructure:"routeId"`
}

type Product struct {
	ID    string  `json:"id" mapstructure:"-"`
	Name  string  `json:"name" mapstructure:"name"`
	Size  string  `json:"size" mapstructure:"size"`
	Price float64 `json:"price" mapstructure:"price"`
}

func (r Route) Fields() map[string]any {
	return map[string]any{"name": r.Name}
}

func (s Shop) Fields() map[string]any {
	return map[string]any{"name": s.Name, "area": s.Area, "routeId": s.RouteID}
}

func (p Product) Fields() map[string]any {
	return map[string]any{"name": p.Name, "size": p.Size, "price": p.Price}
}

// FindProduct looks a product up by id.
func FindProduct(catalog []Product, id string) (Product, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func FindShop(shops []Shop, id string) (Shop, bool) {
	for _, s := range shops {
		if s.ID == id {
			return s, true
		}
	}
	return Shop{}, false
}
