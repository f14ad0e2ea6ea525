package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"resale-market/internal/cache"
	"resale-market/internal/domain"
	"resale-market/internal/payment"
	"resale-market/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Mock repositories for testing

type mockProductRepository struct {
	mu         sync.Mutex
	products   map[uuid.UUID]*domain.Product
	orders     *mockOrderRepository
	releaseErr error
	casCalls   int
	// duringReserve runs inside Reserve after the status check, before the
	// order insert, while the reservation still holds the lock
	duringReserve func()
}

func newMockProductRepository(orders *mockOrderRepository) *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product), orders: orders}
}

func (m *mockProductRepository) put(p *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *mockProductRepository) status(id uuid.UUID) domain.ProductStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Status
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.put(product)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	return nil, 0, nil
}

func (m *mockProductRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to domain.ProductStatus) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.casCalls++
	p, ok := m.products[id]
	if !ok || p.Status != from {
		return nil, repository.ErrProductStatusMismatch
	}
	p.Status = to
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) Reserve(ctx context.Context, id uuid.UUID, order *domain.Order) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.casCalls++
	p, ok := m.products[id]
	if !ok || p.Status != domain.ProductAvailable {
		return nil, repository.ErrProductStatusMismatch
	}
	if m.duringReserve != nil {
		m.duringReserve()
	}

	order.ProductID = p.ID
	order.SellerID = p.SellerID
	order.Amount = p.Price
	order.Currency = p.Currency
	if err := m.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	p.Status = domain.ProductReserved
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) ReleaseReservation(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.releaseErr != nil {
		return false, m.releaseErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.Status != domain.ProductReserved || m.orders.hasActive(id) {
		return false, nil
	}
	p.Status = domain.ProductAvailable
	return true, nil
}

type mockOrderRepository struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	createErr error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockOrderRepository) hasActive(productID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ProductID == productID && o.Status.IsActive() {
			return true
		}
	}
	return false
}

func (m *mockOrderRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ProductID == order.ProductID && o.Status.IsActive() {
			return repository.ErrActiveOrderExists
		}
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		party := o.BuyerID
		if filter.Role == domain.OrderRoleSeller {
			party = o.SellerID
		}
		if party != filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockOrderRepository) Transition(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, details domain.TransitionDetails) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return nil, repository.ErrOrderStatusMismatch
	}
	now := time.Now().UTC()
	o.Status = to
	o.UpdatedAt = now
	switch to {
	case domain.OrderPaid:
		o.PaidAt = &now
	case domain.OrderShipped:
		o.ShippedAt = &now
	case domain.OrderDelivered:
		o.DeliveredAt = &now
	case domain.OrderCancelled:
		o.CancelledAt = &now
	}
	if details.TrackingNumber != nil {
		o.TrackingNumber = details.TrackingNumber
	}
	if details.CancelReason != nil {
		o.CancelReason = details.CancelReason
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepository) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != domain.OrderPending {
		return repository.ErrOrderNotFound
	}
	o.PaymentIntentID = &intentID
	return nil
}

func (m *mockOrderRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status == domain.OrderPending && o.CreatedAt.Before(createdBefore) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockAddressRepository struct {
	addresses map[uuid.UUID]*domain.Address
}

func newMockAddressRepository() *mockAddressRepository {
	return &mockAddressRepository{addresses: make(map[uuid.UUID]*domain.Address)}
}

func (m *mockAddressRepository) clearDefault(userID uuid.UUID, t domain.AddressType, except uuid.UUID) {
	for _, a := range m.addresses {
		if a.UserID == userID && a.Type == t && a.ID != except {
			a.IsDefault = false
		}
	}
}

func (m *mockAddressRepository) Create(ctx context.Context, address *domain.Address) error {
	if address.IsDefault {
		m.clearDefault(address.UserID, address.Type, address.ID)
	}
	cp := *address
	m.addresses[address.ID] = &cp
	return nil
}

func (m *mockAddressRepository) Update(ctx context.Context, address *domain.Address) error {
	existing, ok := m.addresses[address.ID]
	if !ok || existing.UserID != address.UserID {
		return repository.ErrAddressNotFound
	}
	if address.IsDefault {
		m.clearDefault(address.UserID, address.Type, address.ID)
	}
	cp := *address
	m.addresses[address.ID] = &cp
	return nil
}

func (m *mockAddressRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	a, ok := m.addresses[id]
	if !ok || a.UserID != userID {
		return repository.ErrAddressNotFound
	}
	delete(m.addresses, id)
	return nil
}

func (m *mockAddressRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	a, ok := m.addresses[id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	var out []*domain.Address
	for _, a := range m.addresses {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockAddressRepository) SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	a, ok := m.addresses[id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrAddressNotFound
	}
	m.clearDefault(userID, a.Type, id)
	a.IsDefault = true
	cp := *a
	return &cp, nil
}

type mockUserRepository struct {
	users       map[uuid.UUID]*domain.User
	upsertCalls int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[uuid.UUID]*domain.User)}
}

func (m *mockUserRepository) add(u *domain.User) {
	m.users[u.ID] = u
}

func (m *mockUserRepository) UpsertByExternalID(ctx context.Context, user *domain.User) (*domain.User, error) {
	m.upsertCalls++
	for _, u := range m.users {
		if u.ExternalID == user.ExternalID {
			if user.Email != "" {
				u.Email = user.Email
			}
			cp := *u
			return &cp, nil
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepository) UpdateRating(ctx context.Context, id uuid.UUID, average float64, count int) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.AverageRating = average
	u.ReviewCount = count
	return nil
}

type mockReviewRepository struct {
	reviews map[uuid.UUID]*domain.Review
}

func newMockReviewRepository() *mockReviewRepository {
	return &mockReviewRepository{reviews: make(map[uuid.UUID]*domain.Review)}
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	for _, r := range m.reviews {
		if r.OrderID == review.OrderID {
			return repository.ErrReviewExists
		}
	}
	cp := *review
	m.reviews[review.ID] = &cp
	return nil
}

func (m *mockReviewRepository) RatingsFor(ctx context.Context, reviewedID uuid.UUID) ([]int, error) {
	var out []int
	for _, r := range m.reviews {
		if r.ReviewedID == reviewedID {
			out = append(out, r.Rating)
		}
	}
	return out, nil
}

func (m *mockReviewRepository) ListFor(ctx context.Context, reviewedID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error) {
	var out []*domain.Review
	for _, r := range m.reviews {
		if r.ReviewedID == reviewedID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

type pair struct{ a, b uuid.UUID }

type mockSocialRepository struct {
	favorites map[pair]bool
	follows   map[pair]bool
	products  *mockProductRepository
}

func newMockSocialRepository(products *mockProductRepository) *mockSocialRepository {
	return &mockSocialRepository{
		favorites: make(map[pair]bool),
		follows:   make(map[pair]bool),
		products:  products,
	}
}

func toggle(set map[pair]bool, key pair) bool {
	if set[key] {
		delete(set, key)
		return false
	}
	set[key] = true
	return true
}

func countObject(set map[pair]bool, object uuid.UUID) int {
	n := 0
	for k := range set {
		if k.b == object {
			n++
		}
	}
	return n
}

func (m *mockSocialRepository) ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return toggle(m.favorites, pair{userID, productID}), nil
}

func (m *mockSocialRepository) CountFavorites(ctx context.Context, productID uuid.UUID) (int, error) {
	return countObject(m.favorites, productID), nil
}

func (m *mockSocialRepository) ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error) {
	var out []*domain.Product
	for k := range m.favorites {
		if k.a == userID {
			if p, err := m.products.FindByID(ctx, k.b); err == nil {
				out = append(out, p)
			}
		}
	}
	return out, len(out), nil
}

func (m *mockSocialRepository) ToggleFollow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	return toggle(m.follows, pair{followerID, followeeID}), nil
}

func (m *mockSocialRepository) CountFollowers(ctx context.Context, followeeID uuid.UUID) (int, error) {
	return countObject(m.follows, followeeID), nil
}

type mockPaymentEventRepository struct {
	mu     sync.Mutex
	events map[string]*domain.PaymentEvent
}

func newMockPaymentEventRepository() *mockPaymentEventRepository {
	return &mockPaymentEventRepository{events: make(map[string]*domain.PaymentEvent)}
}

func (m *mockPaymentEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *mockPaymentEventRepository) Record(ctx context.Context, event *domain.PaymentEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; ok {
		return false, nil
	}
	cp := *event
	m.events[event.ID] = &cp
	return true, nil
}

type mockGateway struct {
	mu    sync.Mutex
	err   error
	calls []map[string]string
}

func (m *mockGateway) CreateCheckoutIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metadata)
	if m.err != nil {
		return nil, m.err
	}
	id := "pi_" + metadata[payment.MetadataOrderID]
	return &payment.Intent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

var errStoreDown = errors.New("connection refused")

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return cache.New(rdb), mr
}

// fixture wires every service over in-memory repositories
type fixture struct {
	products  *mockProductRepository
	orders    *mockOrderRepository
	addresses *mockAddressRepository
	users     *mockUserRepository
	reviews   *mockReviewRepository
	social    *mockSocialRepository
	payments  *mockPaymentEventRepository
	gateway   *mockGateway
	publisher *recordingPublisher
	cache     *cache.Cache
	redis     *miniredis.Miniredis

	catalog  CatalogService
	guard    *ReservationGuard
	order    OrderService
	payment  PaymentService
	rating   RatingService
	review   ReviewService
	socials  SocialService
	address  AddressService
	identity IdentityService
}

func newFixture(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &fixture{
		orders:    newMockOrderRepository(),
		addresses: newMockAddressRepository(),
		users:     newMockUserRepository(),
		reviews:   newMockReviewRepository(),
		payments:  newMockPaymentEventRepository(),
		gateway:   &mockGateway{},
		publisher: &recordingPublisher{},
	}
	f.products = newMockProductRepository(f.orders)
	f.social = newMockSocialRepository(f.products)
	f.cache, f.redis = newTestCache(t)

	f.catalog = NewCatalogService(f.products, f.cache, time.Minute, "usd", logger)
	f.guard = NewReservationGuard(f.products, logger)
	f.order = NewOrderService(f.guard, f.products, f.orders, f.addresses, f.catalog, f.gateway, f.publisher, logger)
	f.payment = NewPaymentService(f.order, f.payments, f.cache, logger)
	f.rating = NewRatingService(f.reviews, f.users, logger)
	f.review = NewReviewService(f.orders, f.reviews, f.rating, f.publisher, logger)
	f.socials = NewSocialService(f.social, f.products, f.users, f.publisher)
	f.address = NewAddressService(f.addresses)
	f.identity = NewIdentityService(f.users, f.social, f.cache, time.Minute, logger)
	return f
}

func (f *fixture) newUser() *domain.User {
	u := &domain.User{ID: uuid.New(), ExternalID: "idp|" + uuid.NewString(), Role: domain.RoleUser, DisplayName: "user"}
	f.users.add(u)
	return u
}

func (f *fixture) newProduct(sellerID uuid.UUID, price int64) *domain.Product {
	p := &domain.Product{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Title:     "Vintage denim jacket",
		Condition: "good",
		Price:     price,
		Currency:  "usd",
		Status:    domain.ProductAvailable,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	f.products.put(p)
	return p
}

// checkout runs a successful checkout and returns the order
func (f *fixture) checkout(t *testing.T, buyer *domain.User, product *domain.Product) *domain.Order {
	t.Helper()
	res, err := f.order.Checkout(context.Background(), Actor{UserID: buyer.ID, Role: buyer.Role}, product.ID, nil)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return res.Order
}

func actorOf(u *domain.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}
