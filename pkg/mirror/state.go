package mirror

import (
	"github.com/example/monarch/pkg/models"
	"github.com/example/monarch/pkg/store"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// State is a copy of every mirror at one moment of the sync actor. Different
// collections may reflect different points in time.
type State struct {
	Routes   []models.Route   `json:"routes"`
	Shops    []models.Shop    `json:"shops"`
	Orders   []models.Order   `json:"orders"`
	Expenses []models.Expense `json:"expenses"`
	Products []models.Product `json:"products"`
	Profile  models.Profile   `json:"profile"`
}

func newState() State {
	return State{
		Routes:   []models.Route{},
		Shops:    []models.Shop{},
		Orders:   []models.Order{},
		Expenses: []models.Expense{},
		Products: []models.Product{},
		Profile:  models.DefaultProfile(),
	}
}

func (s State) clone() State {
	out := State{
		Routes:   append([]models.Route{}, s.Routes...),
		Shops:    append([]models.Shop{}, s.Shops...),
		Orders:   make([]models.Order, len(s.Orders)),
		Expenses: append([]models.Expense{}, s.Expenses...),
		Products: append([]models.Product{}, s.Products...),
		Profile:  s.Profile,
	}
	for i, o := range s.Orders {
		o.Items = append([]models.OrderItem{}, o.Items...)
		out.Orders[i] = o
	}
	return out
}

// apply replaces the mirror of one collection with the snapshot contents.
func (s *State) apply(collection string, snap store.Snapshot, logger *zap.Logger) {
	switch collection {
	case store.Routes:
		s.Routes = decodeAll(snap, logger, func(r *models.Route, id string) { r.ID = id })
	case store.Shops:
		s.Shops = decodeAll(snap, logger, func(sh *models.Shop, id string) { sh.ID = id })
	case store.Orders:
		s.Orders = decodeAll(snap, logger, func(o *models.Order, id string) { o.ID = id })
	case store.Expenses:
		s.Expenses = decodeAll(snap, logger, func(e *models.Expense, id string) { e.ID = id })
	case store.Products:
		s.Products = decodeAll(snap, logger, func(p *models.Product, id string) { p.ID = id })
	case store.Settings:
		doc, ok := snap.Find(store.ProfileID)
		if !ok {
			return
		}
		var p models.Profile
		if err := decode(doc.Data, &p); err != nil {
			logger.Warn("Skipping undecodable profile", zap.Error(err))
			return
		}
		s.Profile = p
	}
}

func decodeAll[T any](snap store.Snapshot, logger *zap.Logger, setID func(*T, string)) []T {
	out := make([]T, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var v T
		if err := decode(doc.Data, &v); err != nil {
			logger.Warn("Skipping undecodable document",
				zap.String("path", snap.Path),
				zap.String("id", doc.ID),
				zap.Error(err))
			continue
		}
		setID(&v, doc.ID)
		out = append(out, v)
	}
	return out
}

func decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
