package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/user"
)

// withIdentity stands in for auth.Authenticate in handler tests.
func withIdentity(id auth.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func newTestRouter(id auth.Identity, register func(chi.Router)) chi.Router {
	router := chi.NewRouter()
	router.Use(withIdentity(id))
	register(router)
	return router
}

type MockCartService struct{ mock.Mock }

func (m *MockCartService) Lines(ctx context.Context, owner uuid.UUID) ([]cart.Line, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.Line), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, owner, productID uuid.UUID, quantity int) (*cart.Line, error) {
	args := m.Called(ctx, owner, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, owner, lineID uuid.UUID, quantity int) (*cart.Line, error) {
	args := m.Called(ctx, owner, lineID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, owner, lineID uuid.UUID) error {
	return m.Called(ctx, owner, lineID).Error(0)
}

type MockCheckoutService struct{ mock.Mock }

func (m *MockCheckoutService) Preview(ctx context.Context, owner uuid.UUID, code string) (*checkout.Preview, error) {
	args := m.Called(ctx, owner, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Preview), args.Error(1)
}

func (m *MockCheckoutService) Checkout(ctx context.Context, owner uuid.UUID, code string) (*checkout.Result, error) {
	args := m.Called(ctx, owner, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Result), args.Error(1)
}

type MockCatalogService struct{ mock.Mock }

func (m *MockCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) ListProducts(ctx context.Context, category string) ([]catalog.Product, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Search(ctx context.Context, query string) ([]catalog.Product, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Highlights(ctx context.Context) (*catalog.Highlights, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Highlights), args.Error(1)
}

func (m *MockCatalogService) ListOwnProducts(ctx context.Context, actor auth.Identity) ([]catalog.Product, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) TopCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCatalogService) Recommend(ctx context.Context, inCart []catalog.Product) ([]catalog.Product, error) {
	args := m.Called(ctx, inCart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) CreateProduct(ctx context.Context, actor auth.Identity, p *catalog.Product) (*catalog.Product, error) {
	args := m.Called(ctx, actor, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) UpdateProduct(ctx context.Context, actor auth.Identity, p *catalog.Product) (*catalog.Product, error) {
	args := m.Called(ctx, actor, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) DeleteProduct(ctx context.Context, actor auth.Identity, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

type MockCouponService struct{ mock.Mock }

func (m *MockCouponService) GetActive(ctx context.Context, code string) (*coupon.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Coupon), args.Error(1)
}

func (m *MockCouponService) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coupon.Coupon), args.Error(1)
}

func (m *MockCouponService) List(ctx context.Context) ([]coupon.Coupon, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coupon.Coupon), args.Error(1)
}

func (m *MockCouponService) Create(ctx context.Context, c *coupon.Coupon) (*coupon.Coupon, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Coupon), args.Error(1)
}

func (m *MockCouponService) Update(ctx context.Context, c *coupon.Coupon) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCouponService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockSessionStore struct{ mock.Mock }

func (m *MockSessionStore) CouponCode(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockSessionStore) SetCouponCode(ctx context.Context, userID uuid.UUID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *MockSessionStore) ClearCouponCode(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type MockOrderService struct{ mock.Mock }

func (m *MockOrderService) GetOrder(ctx context.Context, actor auth.Identity, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListByOwner(ctx context.Context, owner uuid.UUID) ([]order.Order, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) ListAll(ctx context.Context) ([]order.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) RequestReturn(ctx context.Context, owner, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, owner, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status order.Status) (*order.Order, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockUserService struct{ mock.Mock }

func (m *MockUserService) Register(ctx context.Context, u *user.User, password string) (*user.User, error) {
	args := m.Called(ctx, u, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*user.User), args.Error(2)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]user.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.User), args.Error(1)
}

func (m *MockUserService) CreateUser(ctx context.Context, u *user.User, password string) (*user.User, error) {
	args := m.Called(ctx, u, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, u *user.User, password string) (*user.User, error) {
	args := m.Called(ctx, u, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) CurrentRole(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(auth.Role), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	return m.Called(ctx, id, current, next).Error(0)
}

func (m *MockUserService) DeleteUser(ctx context.Context, actor auth.Identity, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}
