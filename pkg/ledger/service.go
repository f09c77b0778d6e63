package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/example/monarch/pkg/cart"
	"github.com/example/monarch/pkg/config"
	"github.com/example/monarch/pkg/mirror"
	"github.com/example/monarch/pkg/models"
	"github.com/example/monarch/pkg/mutation"
	"github.com/example/monarch/pkg/views"
	"go.uber.org/zap"
)

var ErrUnknownShop = errors.New("shop not found")

// StateReader exposes the mirrors.
type StateReader interface {
	State(ctx context.Context) (mirror.State, error)
}

// Service is what the device UI talks to: reads come from the mirrors, writes
// go through the mutation gateway. A write becomes visible only once the
// resulting snapshot reaches the mirror.
type Service struct {
	mirror   StateReader
	gateway  *mutation.Gateway
	cart     *cart.Cart
	layout   string
	clock    func() time.Time
	shareURL string
	logger   *zap.Logger
}

type Options struct {
	DateLayout string
	Clock      func() time.Time
	ShareURL   string
}

func NewService(m StateReader, gw *mutation.Gateway, c *cart.Cart, logger *zap.Logger, opts Options) *Service {
	if opts.DateLayout == "" {
		opts.DateLayout = config.DefaultDateLayout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		mirror:   m,
		gateway:  gw,
		cart:     c,
		layout:   opts.DateLayout,
		clock:    opts.Clock,
		shareURL: opts.ShareURL,
		logger:   logger,
	}
}

func (s *Service) Gateway() *mutation.Gateway {
	return s.gateway
}

func (s *Service) Cart() *cart.Cart {
	return s.cart
}

func (s *Service) State(ctx context.Context) (mirror.State, error) {
	return s.mirror.State(ctx)
}

func (s *Service) Shops(ctx context.Context, routeID, query string) ([]models.Shop, error) {
	st, err := s.mirror.State(ctx)
	if err != nil {
		return nil, err
	}
	return views.FilterShops(st.Shops, routeID, query), nil
}

// Dashboard is the daily summary plus today's expenses.
type Dashboard struct {
	views.DailyStats
	Expenses []models.Expense `json:"expenses"`
	Profile  models.Profile   `json:"profile"`
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	st, err := s.mirror.State(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	stats := views.Daily(st.Orders, st.Expenses, s.clock(), s.layout)
	return Dashboard{
		DailyStats: stats,
		Expenses:   views.ExpensesOn(st.Expenses, stats.Date),
		Profile:    st.Profile,
	}, nil
}

func (s *Service) History(ctx context.Context) ([]models.Order, error) {
	st, err := s.mirror.State(ctx)
	if err != nil {
		return nil, err
	}
	return views.OrderHistory(st.Orders), nil
}

type CartView struct {
	Lines []cart.Line `json:"lines"`
	Total float64     `json:"total"`
}

func (s *Service) CartView(ctx context.Context) (CartView, error) {
	st, err := s.mirror.State(ctx)
	if err != nil {
		return CartView{}, err
	}
	lines := s.cart.Lines()
	return CartView{Lines: lines, Total: cart.Total(lines, st.Products)}, nil
}

// SubmitOrder turns the cart into an order for shopID. It reports false, and
// leaves the cart alone, when the identity is unresolved or no item would be
// ordered. The cart is cleared once the store acknowledges the order.
func (s *Service) SubmitOrder(ctx context.Context, shopID string) (string, bool, error) {
	if !s.gateway.Ready() {
		return "", false, nil
	}
	st, err := s.mirror.State(ctx)
	if err != nil {
		return "", false, err
	}
	shop, ok := models.FindShop(st.Shops, shopID)
	if !ok {
		return "", false, ErrUnknownShop
	}

	draft, ok := cart.BuildOrder(shop, s.cart.Lines(), st.Products)
	if !ok {
		return "", false, nil
	}
	id, err := s.gateway.PlaceOrder(ctx, draft)
	if err != nil {
		return "", false, err
	}
	if id == "" {
		// identity was cleared after the Ready check; nothing was written
		s.logger.Warn("Order skipped, identity no longer resolved", zap.String("shop_id", shop.ID))
		return "", false, nil
	}
	s.cart.Clear()

	s.logger.Info("Order placed",
		zap.String("order_id", id),
		zap.String("shop_id", shop.ID),
		zap.Int("item_count", len(draft.Items)),
		zap.Float64("total", draft.Total))
	return id, true, nil
}

type ShareLink struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Share returns the link other devices open to join the same ledger. It never
// fails; without a configured URL the status says so.
func (s *Service) Share() ShareLink {
	if s.shareURL == "" {
		s.logger.Warn("Share link requested but app.share_url is not set")
		return ShareLink{Status: "Copy Link"}
	}
	return ShareLink{URL: s.shareURL, Status: "Copied!"}
}
