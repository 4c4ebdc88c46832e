package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeProducts is an in-memory CatalogProducts.
type fakeProducts struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Product
}

func newFakeProducts(items ...models.Product) *fakeProducts {
	f := &fakeProducts{items: map[primitive.ObjectID]*models.Product{}}
	for i := range items {
		p := items[i]
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		f.items[p.ID] = &p
	}
	return f
}

func (f *fakeProducts) get(id primitive.ObjectID) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (f *fakeProducts) add(p *models.Product) {
	_ = f.Insert(context.Background(), p)
}

func (f *fakeProducts) List(_ context.Context, filter store.ProductFilter, page store.Page) ([]models.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Product
	for _, p := range f.items {
		if p.IsDeleted || (filter.ActiveOnly && !p.IsActive) {
			continue
		}
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, *p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := int64(len(matched))
	start := (page.Number - 1) * page.Size
	if start >= total {
		return []models.Product{}, total, nil
	}
	end := min(start+page.Size, total)
	return matched[start:end], total, nil
}

func (f *fakeProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p := f.get(id)
	if p == nil || p.IsDeleted {
		return nil, store.ErrNotFound
	}
	p.Normalize()
	return p, nil
}

func (f *fakeProducts) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	out := []models.Product{}
	for _, id := range ids {
		if p := f.get(id); p != nil && !p.IsDeleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) Insert(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = primitive.NewObjectID()
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakeProducts) Update(_ context.Context, id primitive.ObjectID, set, unset bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range set {
		switch k {
		case "name":
			p.Name = v.(string)
		case "description":
			p.Description = v.(string)
		case "brand":
			p.Brand = v.(string)
		case "price":
			p.Price = v.(float64)
		case "saleEnabled":
			p.SaleEnabled = v.(bool)
		case "salePrice":
			p.SalePrice = v.(float64)
		case "stock":
			p.Stock = v.(int)
		case "variants":
			p.Variants = v.([]models.Variant)
		case "isActive":
			p.IsActive = v.(bool)
		case "categoryId":
			p.CategoryID = v.(primitive.ObjectID)
		case "imagePath":
			p.ImagePath = v.(string)
		}
	}
	for k := range unset {
		switch k {
		case "variants":
			p.Variants = nil
		case "imagePath":
			p.ImagePath = ""
		}
	}
	return nil
}

func (f *fakeProducts) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return store.ErrNotFound
	}
	p.IsDeleted = true
	return nil
}

func (f *fakeProducts) CountByCategory(_ context.Context, categoryID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.items {
		if p.CategoryID == categoryID && !p.IsDeleted {
			n++
		}
	}
	return n, nil
}

type fakeCategories struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Category
}

func newFakeCategories(items ...models.Category) *fakeCategories {
	f := &fakeCategories{items: map[primitive.ObjectID]*models.Category{}}
	for i := range items {
		c := items[i]
		f.items[c.ID] = &c
	}
	return f
}

func (f *fakeCategories) add(c models.Category) models.Category {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := c
	f.items[c.ID] = &cp
	return c
}

func (f *fakeCategories) List(_ context.Context, activeOnly bool) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Category{}
	for _, c := range f.items {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCategories) FindByID(_ context.Context, id primitive.ObjectID) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCategories) Insert(_ context.Context, c *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.Name == c.Name {
			return store.ErrDuplicate
		}
	}
	c.ID = primitive.NewObjectID()
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCategories) Update(_ context.Context, id primitive.ObjectID, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return store.ErrNotFound
	}
	if name, ok := set["name"].(string); ok {
		c.Name = name
		c.Slug = set["slug"].(string)
	}
	if active, ok := set["isActive"].(bool); ok {
		c.IsActive = active
	}
	return nil
}

func (f *fakeCategories) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

// fakeUsers is an in-memory Accounts.
type fakeUsers struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{items: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		f.items[u.ID] = u
	}
	return f
}

func (f *fakeUsers) copyOf(u *models.User) *models.User {
	cp := *u
	cp.Addresses = append([]models.Address{}, u.Addresses...)
	cp.Wishlist = append([]primitive.ObjectID{}, u.Wishlist...)
	return &cp
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return f.copyOf(u), nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.Email == email {
			return f.copyOf(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) Insert(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	f.items[u.ID] = f.copyOf(u)
	return nil
}

func (f *fakeUsers) List(_ context.Context, _ store.Page) ([]models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, u := range f.items {
		out = append(out, *f.copyOf(u))
	}
	return out, int64(len(out)), nil
}

func (f *fakeUsers) SetAddresses(_ context.Context, userID primitive.ObjectID, addresses []models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Addresses = append([]models.Address{}, addresses...)
	return nil
}

func (f *fakeUsers) AddWishlist(_ context.Context, userID, productID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[userID]
	if !ok {
		return store.ErrNotFound
	}
	for _, id := range u.Wishlist {
		if id == productID {
			return nil
		}
	}
	u.Wishlist = append(u.Wishlist, productID)
	return nil
}

func (f *fakeUsers) RemoveWishlist(_ context.Context, userID, productID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[userID]
	if !ok {
		return store.ErrNotFound
	}
	kept := u.Wishlist[:0]
	for _, id := range u.Wishlist {
		if id != productID {
			kept = append(kept, id)
		}
	}
	u.Wishlist = kept
	return nil
}

type fakeDiscounts struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Discount
}

func newFakeDiscounts() *fakeDiscounts {
	return &fakeDiscounts{items: map[primitive.ObjectID]*models.Discount{}}
}

func (f *fakeDiscounts) List(_ context.Context, _ store.Page) ([]models.Discount, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Discount{}
	for _, d := range f.items {
		out = append(out, *d)
	}
	return out, int64(len(out)), nil
}

func (f *fakeDiscounts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDiscounts) Insert(_ context.Context, d *models.Discount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if d.Code != "" && existing.Code == d.Code {
			return store.ErrDuplicate
		}
	}
	d.ID = primitive.NewObjectID()
	cp := *d
	f.items[d.ID] = &cp
	return nil
}

func (f *fakeDiscounts) Replace(_ context.Context, d *models.Discount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.items[d.ID]
	if !ok {
		return store.ErrNotFound
	}
	cp := *d
	cp.UsedCount = existing.UsedCount
	f.items[d.ID] = &cp
	return nil
}

func (f *fakeDiscounts) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeCampaigns struct {
	items []models.Campaign
}

func (f *fakeCampaigns) ListRunning(_ context.Context, now time.Time) ([]models.Campaign, error) {
	out := []models.Campaign{}
	for _, c := range f.items {
		if c.RunningAt(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaigns) Insert(_ context.Context, c *models.Campaign) error {
	c.ID = primitive.NewObjectID()
	f.items = append(f.items, *c)
	return nil
}

func (f *fakeCampaigns) Delete(_ context.Context, id primitive.ObjectID) error {
	for i, c := range f.items {
		if c.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// stubEngine accepts one code and discounts 10 percent of the subtotal.
type stubEngine struct {
	code      string
	validated []primitive.ObjectID
	lines     []pricing.Line
}

func (s *stubEngine) Validate(_ context.Context, code string, userID primitive.ObjectID, subtotal decimal.Decimal) (*pricing.CodeResult, error) {
	if pricing.NormalizeCode(code) != s.code {
		return nil, pricing.ErrDiscountNotFound
	}
	s.validated = append(s.validated, userID)
	amount := subtotal.Div(decimal.NewFromInt(10)).Round(2)
	return &pricing.CodeResult{
		Discount:       &models.Discount{Code: s.code, Type: models.DiscountPercentage, Value: 10},
		DiscountAmount: amount,
		FinalAmount:    subtotal.Sub(amount),
		Redeemed:       true,
	}, nil
}

func (s *stubEngine) ApplyCategoryDiscounts(_ context.Context, lines []pricing.Line) (*pricing.CategoryResult, error) {
	s.lines = lines
	res := &pricing.CategoryResult{Total: decimal.Zero, Applied: []pricing.AppliedDiscount{}}
	for _, l := range lines {
		amount := l.Total().Div(decimal.NewFromInt(5)).Round(2)
		res.Total = res.Total.Add(amount)
		res.Applied = append(res.Applied, pricing.AppliedDiscount{ProductID: l.ProductID, Amount: pricing.Float(amount)})
	}
	return res, nil
}

// stubCarts records the calls it receives.
type stubCarts struct {
	calls []string
	last  cart.LineInput
	code  string
	err   error
}

func (s *stubCarts) result(userID primitive.ObjectID, call string) (*models.Cart, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
}

func (s *stubCarts) Get(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	return s.result(userID, "get")
}

func (s *stubCarts) Add(_ context.Context, userID primitive.ObjectID, in cart.LineInput) (*models.Cart, error) {
	s.last = in
	return s.result(userID, "add")
}

func (s *stubCarts) Update(_ context.Context, userID primitive.ObjectID, in cart.LineInput) (*models.Cart, error) {
	s.last = in
	return s.result(userID, "update")
}

func (s *stubCarts) Remove(_ context.Context, userID, productID primitive.ObjectID, size string) (*models.Cart, error) {
	s.last = cart.LineInput{ProductID: productID, Size: size}
	return s.result(userID, "remove")
}

func (s *stubCarts) Clear(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	return s.result(userID, "clear")
}

func (s *stubCarts) Quote(_ context.Context, _ primitive.ObjectID, code string) (*pricing.Quote, error) {
	s.calls = append(s.calls, "quote")
	s.code = code
	q := &pricing.Quote{
		Subtotal:         decimal.NewFromInt(200),
		CategoryDiscount: decimal.NewFromInt(20),
		Total:            decimal.NewFromInt(180),
	}
	if code != "" {
		q.ApplyCode(&pricing.CodeResult{
			Discount:       &models.Discount{Code: pricing.NormalizeCode(code)},
			DiscountAmount: decimal.NewFromInt(18),
		})
	}
	return q, nil
}

// stubOrders returns canned orders and records inputs.
type stubOrders struct {
	created   orders.CreateInput
	createErr error
	order     *models.Order
	status    models.OrderStatus
	listed    models.OrderStatus
	deleted   primitive.ObjectID
}

func (s *stubOrders) Create(_ context.Context, userID primitive.ObjectID, in orders.CreateInput) (*models.Order, error) {
	s.created = in
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Order{ID: primitive.NewObjectID(), UserID: userID, Status: models.OrderPending}, nil
}

func (s *stubOrders) Get(_ context.Context, caller auth.Identity, id primitive.ObjectID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, orders.ErrOrderNotFound
	}
	if !caller.IsAdmin && s.order.UserID != caller.UserID {
		return nil, orders.ErrNotOwner
	}
	return s.order, nil
}

func (s *stubOrders) ListMine(_ context.Context, userID primitive.ObjectID, _ store.Page) ([]models.Order, int64, error) {
	if s.order != nil && s.order.UserID == userID {
		return []models.Order{*s.order}, 1, nil
	}
	return nil, 0, nil
}

func (s *stubOrders) ListAll(_ context.Context, status models.OrderStatus, _ store.Page) ([]models.Order, int64, error) {
	s.listed = status
	return nil, 0, nil
}

func (s *stubOrders) Cancel(_ context.Context, userID, orderID primitive.ObjectID) (*models.Order, error) {
	o, err := s.Get(context.Background(), auth.Identity{UserID: userID}, orderID)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderCancelled
	return o, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, _ primitive.ObjectID, status models.OrderStatus, _ string) (*models.Order, error) {
	s.status = status
	if !models.OrderStatus(strings.ToLower(string(status))).Valid() {
		return nil, orders.ErrInvalidStatus
	}
	return s.order, nil
}

func (s *stubOrders) Delete(_ context.Context, id primitive.ObjectID) error {
	s.deleted = id
	return nil
}

type stubInvoices struct {
	invoice *models.Invoice
	path    string
}

func (s *stubInvoices) Generate(_ context.Context, caller auth.Identity, _ primitive.ObjectID) (*models.Invoice, error) {
	if !caller.IsAdmin && s.invoice.UserID != caller.UserID {
		return nil, orders.ErrNotOwner
	}
	return s.invoice, nil
}

func (s *stubInvoices) Get(_ context.Context, caller auth.Identity, id primitive.ObjectID) (*models.Invoice, error) {
	if s.invoice == nil || s.invoice.ID != id {
		return nil, orders.ErrOrderNotFound
	}
	if !caller.IsAdmin && s.invoice.UserID != caller.UserID {
		return nil, orders.ErrNotOwner
	}
	return s.invoice, nil
}

func (s *stubInvoices) ListMine(_ context.Context, _ primitive.ObjectID, _ store.Page) ([]models.Invoice, int64, error) {
	return []models.Invoice{*s.invoice}, 1, nil
}

func (s *stubInvoices) Path(*models.Invoice) string {
	return s.path
}

type stubRecommender struct {
	forUser *primitive.ObjectID
	limit   int
}

func (s *stubRecommender) For(_ context.Context, userID *primitive.ObjectID, limit int) ([]models.Product, error) {
	s.forUser = userID
	s.limit = limit
	return []models.Product{{Name: "suggested"}}, nil
}

func (s *stubRecommender) BestSellers(_ context.Context, limit int) ([]models.Product, error) {
	s.limit = limit
	return []models.Product{{Name: "top", SoldCount: 9}}, nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// testServer wires RegisterRoutes with in-memory collaborators.
type testServer struct {
	engine      *gin.Engine
	tokens      *auth.Tokens
	products    *fakeProducts
	categories  *fakeCategories
	users       *fakeUsers
	discounts   *fakeDiscounts
	campaigns   *fakeCampaigns
	pricing     *stubEngine
	carts       *stubCarts
	orders      *stubOrders
	invoices    *stubInvoices
	recommender *stubRecommender
	uploadDir   string
	customer    *models.User
	admin       *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := auth.HashPassword("secret-pass")
	require.NoError(t, err)

	s := &testServer{
		tokens:      auth.NewTokens("test-secret", time.Hour),
		products:    newFakeProducts(),
		categories:  newFakeCategories(),
		discounts:   newFakeDiscounts(),
		campaigns:   &fakeCampaigns{},
		pricing:     &stubEngine{code: "SAVE10"},
		carts:       &stubCarts{},
		orders:      &stubOrders{},
		invoices:    &stubInvoices{},
		recommender: &stubRecommender{},
		uploadDir:   t.TempDir(),
		customer: &models.User{
			ID:           primitive.NewObjectID(),
			Name:         "Ada",
			Email:        "ada@example.com",
			PasswordHash: hash,
		},
		admin: &models.User{
			ID:           primitive.NewObjectID(),
			Name:         "Root",
			Email:        "root@example.com",
			PasswordHash: hash,
			IsAdmin:      true,
		},
	}
	s.users = newFakeUsers(s.customer, s.admin)

	s.engine = gin.New()
	RegisterRoutes(s.engine, Deps{
		Products:    s.products,
		Categories:  s.categories,
		Users:       s.users,
		Discounts:   s.discounts,
		Campaigns:   s.campaigns,
		Engine:      s.pricing,
		Carts:       s.carts,
		Orders:      s.orders,
		Invoices:    s.invoices,
		Recommender: s.recommender,
		Tokens:      s.tokens,
		Cookie:      CookieSettings{Name: "token"},
		Health:      stubPinger{},
		UploadDir:   s.uploadDir,
	})
	return s
}

// do sends a JSON request, signed in as user when user is not nil.
func (s *testServer) do(t *testing.T, method, path string, body any, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(t, req, user)
}

func (s *testServer) send(t *testing.T, req *http.Request, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	if user != nil {
		token, _, err := s.tokens.Issue(user.ID, user.IsAdmin)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
