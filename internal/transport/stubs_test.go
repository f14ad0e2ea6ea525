package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"resale-market/internal/domain"
	"resale-market/internal/middleware"
	"resale-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	filter   domain.ProductFilter
	query    string
	err      error
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{products: make(map[uuid.UUID]*domain.Product)}
}

func (s *stubCatalog) CreateListing(ctx context.Context, sellerID uuid.UUID, input service.ListingInput) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := &domain.Product{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Title:     input.Title,
		Condition: input.Condition,
		Price:     input.Price,
		Currency:  "usd",
		Status:    domain.ProductAvailable,
	}
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return p, nil
}

func (s *stubCatalog) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, service.ErrProductNotFound
	}
	return p, nil
}

func (s *stubCatalog) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	s.filter = filter
	return []*domain.Product{}, 0, s.err
}

func (s *stubCatalog) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	s.query = query
	return []*domain.Product{}, 0, nil
}

func (s *stubCatalog) Remove(ctx context.Context, id uuid.UUID, actor service.Actor) (*domain.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.SellerID != actor.UserID && !actor.IsAdmin() {
		return nil, service.ErrForbidden
	}
	p.Status = domain.ProductRemoved
	return p, nil
}

func (s *stubCatalog) Invalidate(ctx context.Context, id uuid.UUID) {}

type stubSocial struct {
	favorites map[uuid.UUID]bool
	follows   map[uuid.UUID]bool
}

func newStubSocial() *stubSocial {
	return &stubSocial{favorites: make(map[uuid.UUID]bool), follows: make(map[uuid.UUID]bool)}
}

func (s *stubSocial) ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (*domain.ToggleResult, error) {
	s.favorites[productID] = !s.favorites[productID]
	count := 0
	if s.favorites[productID] {
		count = 1
	}
	return &domain.ToggleResult{Active: s.favorites[productID], Count: count}, nil
}

func (s *stubSocial) ToggleFollow(ctx context.Context, followerID, followeeID uuid.UUID) (*domain.ToggleResult, error) {
	if followerID == followeeID {
		return nil, service.ErrSelfFollow
	}
	s.follows[followeeID] = !s.follows[followeeID]
	return &domain.ToggleResult{Active: s.follows[followeeID]}, nil
}

func (s *stubSocial) ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error) {
	return []*domain.Product{}, 0, nil
}

type stubIdentity struct {
	users map[uuid.UUID]*domain.User
}

func (s *stubIdentity) Resolve(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error) {
	return nil, service.ErrUserNotFound
}

func (s *stubIdentity) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *stubIdentity) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Email = ""
	return &domain.Profile{User: *u, FollowerCount: 3}, nil
}

type reviewCall struct {
	reviewerID, orderID uuid.UUID
	rating              int
	comment             string
}

type stubReviews struct {
	calls []reviewCall
	err   error
}

func (s *stubReviews) Create(ctx context.Context, reviewerID, orderID uuid.UUID, rating int, comment string) (*domain.Review, error) {
	s.calls = append(s.calls, reviewCall{reviewerID, orderID, rating, comment})
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Review{ID: uuid.New(), OrderID: orderID, ReviewerID: reviewerID, Rating: rating, Comment: comment}, nil
}

func (s *stubReviews) ListFor(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error) {
	return []*domain.Review{{ID: uuid.New(), ReviewedID: userID, Rating: 5}}, 1, nil
}

type stubAddresses struct {
	addresses map[uuid.UUID]*domain.Address
}

func newStubAddresses() *stubAddresses {
	return &stubAddresses{addresses: make(map[uuid.UUID]*domain.Address)}
}

func (s *stubAddresses) owned(userID, id uuid.UUID) (*domain.Address, error) {
	a, ok := s.addresses[id]
	if !ok || a.UserID != userID {
		return nil, service.ErrAddressNotFound
	}
	return a, nil
}

func (s *stubAddresses) List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	out := []*domain.Address{}
	for _, a := range s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAddresses) Create(ctx context.Context, userID uuid.UUID, input service.AddressInput) (*domain.Address, error) {
	a := &domain.Address{ID: uuid.New(), UserID: userID, Type: input.Type, City: input.City, Country: strings.ToUpper(input.Country)}
	s.addresses[a.ID] = a
	return a, nil
}

func (s *stubAddresses) Update(ctx context.Context, userID, id uuid.UUID, input service.AddressInput) (*domain.Address, error) {
	a, err := s.owned(userID, id)
	if err != nil {
		return nil, err
	}
	a.City = input.City
	return a, nil
}

func (s *stubAddresses) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.owned(userID, id); err != nil {
		return err
	}
	delete(s.addresses, id)
	return nil
}

func (s *stubAddresses) SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	a, err := s.owned(userID, id)
	if err != nil {
		return nil, err
	}
	a.IsDefault = true
	return a, nil
}

type stubOrders struct {
	checkoutErr  error
	lastRole     domain.OrderRole
	lastStatus   *domain.OrderStatus
	lastReason   string
	lastTracking string
	lastAddress  *uuid.UUID
	sweptAge     time.Duration
	sweptBatch   int
	order        *domain.Order
}

func (s *stubOrders) Checkout(ctx context.Context, actor service.Actor, productID uuid.UUID, shippingAddressID *uuid.UUID) (*service.CheckoutResult, error) {
	s.lastAddress = shippingAddressID
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	order := &domain.Order{ID: uuid.New(), BuyerID: actor.UserID, ProductID: productID, Status: domain.OrderPending}
	return &service.CheckoutResult{
		Order:        order,
		Product:      &domain.Product{ID: productID, Status: domain.ProductReserved},
		ClientSecret: "pi_123_secret_abc",
	}, nil
}

func (s *stubOrders) Get(ctx context.Context, orderID uuid.UUID, actor service.Actor) (*domain.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, service.ErrOrderNotFound
	}
	if s.order.BuyerID != actor.UserID && s.order.SellerID != actor.UserID && !actor.IsAdmin() {
		return nil, service.ErrForbidden
	}
	return s.order, nil
}

func (s *stubOrders) List(ctx context.Context, actor service.Actor, role domain.OrderRole, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	s.lastRole = role
	s.lastStatus = status
	return []*domain.Order{}, 0, nil
}

func (s *stubOrders) Ship(ctx context.Context, orderID uuid.UUID, actor service.Actor, trackingNumber string) (*domain.Order, error) {
	s.lastTracking = trackingNumber
	return &domain.Order{ID: orderID, Status: domain.OrderShipped, TrackingNumber: &trackingNumber}, nil
}

func (s *stubOrders) ConfirmDelivery(ctx context.Context, orderID uuid.UUID, actor service.Actor) (*domain.Order, error) {
	return nil, service.ErrInvalidTransition
}

func (s *stubOrders) Cancel(ctx context.Context, orderID uuid.UUID, actor service.Actor, reason string) (*domain.Order, error) {
	s.lastReason = reason
	return &domain.Order{ID: orderID, Status: domain.OrderCancelled}, nil
}

func (s *stubOrders) MarkPaid(ctx context.Context, orderID uuid.UUID) (*domain.Order, bool, error) {
	return nil, false, nil
}

func (s *stubOrders) Abandon(ctx context.Context, orderID uuid.UUID, reason string) (*domain.Order, bool, error) {
	return nil, false, nil
}

func (s *stubOrders) CancelStalePending(ctx context.Context, olderThan time.Duration, batchSize int) (int, error) {
	s.sweptAge = olderThan
	s.sweptBatch = batchSize
	return 2, nil
}

type stubPayments struct {
	mu     sync.Mutex
	events []*domain.PaymentEvent
	err    error
}

func (s *stubPayments) HandleEvent(ctx context.Context, event *domain.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

// testAuth trusts an X-Test-User header ("<uuid>" or "<uuid>:admin") in
// place of a verified token
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Test-User")
		if raw == "" {
			middleware.RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		idPart, role, _ := strings.Cut(raw, ":")
		if role == "" {
			role = domain.RoleUser
		}
		ctx := context.WithValue(r.Context(), middleware.UserIDKey, uuid.MustParse(idPart))
		ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type testAPI struct {
	router    chi.Router
	catalog   *stubCatalog
	social    *stubSocial
	identity  *stubIdentity
	reviews   *stubReviews
	addresses *stubAddresses
	orders    *stubOrders
	payments  *stubPayments
}

func newTestAPI(parser EventParser) *testAPI {
	api := &testAPI{
		router:    chi.NewRouter(),
		catalog:   newStubCatalog(),
		social:    newStubSocial(),
		identity:  &stubIdentity{users: make(map[uuid.UUID]*domain.User)},
		reviews:   &stubReviews{},
		addresses: newStubAddresses(),
		orders:    &stubOrders{},
		payments:  &stubPayments{},
	}
	logger := zap.NewNop()

	NewProductHandler(api.catalog, api.social, logger).RegisterRoutes(api.router, testAuth)
	NewUserHandler(api.identity, api.social, api.reviews, logger).RegisterRoutes(api.router, testAuth)
	NewAddressHandler(api.addresses, logger).RegisterRoutes(api.router, testAuth)
	NewOrderHandler(api.orders, 30*time.Minute, 50, logger).RegisterRoutes(api.router, testAuth)
	NewReviewHandler(api.reviews, logger).RegisterRoutes(api.router, testAuth)
	if parser != nil {
		NewWebhookHandler(parser, api.payments, logger).RegisterRoutes(api.router)
	}
	return api
}

func (api *testAPI) do(method, path, user string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success  bool                   `json:"success"`
	Data     json.RawMessage        `json:"data"`
	Error    middleware.ErrorDetail `json:"error"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Total    int                    `json:"total"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
