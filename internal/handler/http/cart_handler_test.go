package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/money"
	"github.com/vasiliy-maslov/storefront-service/internal/pricing"
	"github.com/vasiliy-maslov/storefront-service/internal/stock"
)

type cartFixture struct {
	carts    *MockCartService
	checkout *MockCheckoutService
	catalog  *MockCatalogService
	coupons  *MockCouponService
	sessions *MockSessionStore
	caller   auth.Identity
}

func newCartFixture() *cartFixture {
	return &cartFixture{
		carts:    new(MockCartService),
		checkout: new(MockCheckoutService),
		catalog:  new(MockCatalogService),
		coupons:  new(MockCouponService),
		sessions: new(MockSessionStore),
		caller:   auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleCustomer},
	}
}

func (f *cartFixture) serve(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h := NewCartHandler(f.carts, f.checkout, f.catalog, f.coupons, f.sessions)
	newTestRouter(f.caller, h.RegisterRoutes).ServeHTTP(rr, req)
	return rr
}

func watchLine(owner uuid.UUID, qty, stockLeft int) cart.Line {
	productID := uuid.Must(uuid.NewV4())
	return cart.Line{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    owner,
		ProductID: productID,
		Quantity:  qty,
		Product: catalog.Product{
			ID:       productID,
			Name:     "Watch",
			Price:    money.MustParse("50.00"),
			Stock:    stockLeft,
			Category: "Watches/Luxury",
		},
	}
}

func TestCartHandler_GetCart(t *testing.T) {
	f := newCartFixture()
	line := watchLine(f.caller.UserID, 2, 1)
	ten := &coupon.Coupon{Code: "TEN", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(10), Active: true}
	lines := []cart.Line{line}
	recommended := []catalog.Product{{ID: uuid.Must(uuid.NewV4()), Name: "Strap", Category: "Watches/Straps"}}

	f.sessions.On("CouponCode", mock.Anything, f.caller.UserID).Return("TEN", nil).Once()
	f.checkout.On("Preview", mock.Anything, f.caller.UserID, "TEN").Return(&checkout.Preview{
		Lines:     lines,
		Quote:     pricing.Price(lines, ten),
		Shortages: stock.Shortages(cart.Demands(lines)),
	}, nil).Once()
	f.catalog.On("Recommend", mock.Anything, cart.Products(lines)).Return(recommended, nil).Once()

	rr := f.serve(t, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp CartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "100.00", resp.Subtotal.String())
	assert.Equal(t, "10.00", resp.Discount.String())
	assert.Equal(t, "90.00", resp.Total.String())
	require.NotNil(t, resp.Coupon)
	assert.Equal(t, "TEN", *resp.Coupon)
	if diff := cmp.Diff([]stock.Shortage{{ProductID: line.ProductID, Name: "Watch", Requested: 2, Available: 1}}, resp.Shortages); diff != "" {
		t.Errorf("shortages mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, "Strap", resp.Recommendations[0].Name)

	f.sessions.AssertNotCalled(t, "ClearCouponCode", mock.Anything, mock.Anything)
	f.checkout.AssertExpectations(t)
	f.catalog.AssertExpectations(t)
}

func TestCartHandler_GetCart_DropsInvalidatedCoupon(t *testing.T) {
	f := newCartFixture()
	lines := []cart.Line{watchLine(f.caller.UserID, 1, 5)}

	f.sessions.On("CouponCode", mock.Anything, f.caller.UserID).Return("OLD", nil).Once()
	f.checkout.On("Preview", mock.Anything, f.caller.UserID, "OLD").Return(&checkout.Preview{
		Lines:             lines,
		Quote:             pricing.Price(lines, nil),
		CouponInvalidated: true,
	}, nil).Once()
	f.sessions.On("ClearCouponCode", mock.Anything, f.caller.UserID).Return(nil).Once()
	f.catalog.On("Recommend", mock.Anything, mock.Anything).Return([]catalog.Product{}, nil).Once()

	rr := f.serve(t, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp CartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Nil(t, resp.Coupon)
	assert.Equal(t, "50.00", resp.Total.String())
	assert.Empty(t, resp.Shortages)
	f.sessions.AssertExpectations(t)
}

func TestCartHandler_ApplyCoupon(t *testing.T) {
	t.Run("invalid_code_clears_session", func(t *testing.T) {
		f := newCartFixture()
		f.coupons.On("GetActive", mock.Anything, "NOPE").Return(nil, coupon.ErrInvalidCoupon).Once()
		f.sessions.On("ClearCouponCode", mock.Anything, f.caller.UserID).Return(nil).Once()

		rr := f.serve(t, http.MethodPost, "/cart/coupon", ApplyCouponRequest{Code: "NOPE"})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		f.sessions.AssertExpectations(t)
		f.sessions.AssertNotCalled(t, "SetCouponCode", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lookup_failure_keeps_session", func(t *testing.T) {
		f := newCartFixture()
		f.coupons.On("GetActive", mock.Anything, "TEN").Return(nil, errors.New("connection refused")).Once()

		rr := f.serve(t, http.MethodPost, "/cart/coupon", ApplyCouponRequest{Code: "TEN"})
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		f.coupons.AssertExpectations(t)
		f.sessions.AssertNotCalled(t, "ClearCouponCode", mock.Anything, mock.Anything)
		f.sessions.AssertNotCalled(t, "SetCouponCode", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty_code_clears_and_renders_cart", func(t *testing.T) {
		f := newCartFixture()
		f.sessions.On("ClearCouponCode", mock.Anything, f.caller.UserID).Return(nil).Once()
		f.sessions.On("CouponCode", mock.Anything, f.caller.UserID).Return("", nil).Once()
		f.checkout.On("Preview", mock.Anything, f.caller.UserID, "").Return(&checkout.Preview{
			Lines: []cart.Line{},
			Quote: pricing.Price(nil, nil),
		}, nil).Once()
		f.catalog.On("Recommend", mock.Anything, []catalog.Product{}).Return([]catalog.Product{}, nil).Once()

		rr := f.serve(t, http.MethodPost, "/cart/coupon", ApplyCouponRequest{Code: "  "})
		require.Equal(t, http.StatusOK, rr.Code)
		f.coupons.AssertNotCalled(t, "GetActive", mock.Anything, mock.Anything)
		f.sessions.AssertExpectations(t)
	})

	t.Run("valid_code_is_stored", func(t *testing.T) {
		f := newCartFixture()
		ten := &coupon.Coupon{Code: "TEN", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(10), Active: true}
		f.coupons.On("GetActive", mock.Anything, "TEN").Return(ten, nil).Once()
		f.sessions.On("SetCouponCode", mock.Anything, f.caller.UserID, "TEN").Return(nil).Once()
		f.sessions.On("CouponCode", mock.Anything, f.caller.UserID).Return("TEN", nil).Once()
		f.checkout.On("Preview", mock.Anything, f.caller.UserID, "TEN").Return(&checkout.Preview{
			Lines: []cart.Line{},
			Quote: pricing.Price(nil, ten),
		}, nil).Once()
		f.catalog.On("Recommend", mock.Anything, mock.Anything).Return([]catalog.Product{}, nil).Once()

		rr := f.serve(t, http.MethodPost, "/cart/coupon", ApplyCouponRequest{Code: "TEN"})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp CartResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.NotNil(t, resp.Coupon)
		assert.Equal(t, "TEN", *resp.Coupon)
		f.sessions.AssertExpectations(t)
	})
}

func TestCartHandler_UpdateItem(t *testing.T) {
	f := newCartFixture()
	line := watchLine(f.caller.UserID, 1, 1)

	t.Run("insufficient_stock", func(t *testing.T) {
		shortage := stock.Shortage{ProductID: line.ProductID, Name: "Watch", Requested: 3, Available: 1}
		f.carts.On("UpdateQuantity", mock.Anything, f.caller.UserID, line.ID, 3).
			Return(nil, &stock.InsufficientStockError{Shortages: []stock.Shortage{shortage}}).Once()

		rr := f.serve(t, http.MethodPatch, "/cart/items/"+line.ID.String(), UpdateItemRequest{Quantity: intPtr(3)})
		require.Equal(t, http.StatusConflict, rr.Code)

		var resp ShortageResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, []stock.Shortage{shortage}, resp.Shortages)
	})

	t.Run("zero_removes", func(t *testing.T) {
		f.carts.On("UpdateQuantity", mock.Anything, f.caller.UserID, line.ID, 0).Return(nil, nil).Once()

		rr := f.serve(t, http.MethodPatch, "/cart/items/"+line.ID.String(), UpdateItemRequest{Quantity: intPtr(0)})
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("other_users_line", func(t *testing.T) {
		f.carts.On("UpdateQuantity", mock.Anything, f.caller.UserID, line.ID, 2).Return(nil, cart.ErrForbidden).Once()

		rr := f.serve(t, http.MethodPatch, "/cart/items/"+line.ID.String(), UpdateItemRequest{Quantity: intPtr(2)})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("bad_id", func(t *testing.T) {
		rr := f.serve(t, http.MethodPatch, "/cart/items/not-a-uuid", UpdateItemRequest{Quantity: intPtr(2)})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	for name, body := range map[string]string{
		"missing_quantity": `{}`,
		"null_quantity":    `{"quantity":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := f.serve(t, http.MethodPatch, "/cart/items/"+line.ID.String(), json.RawMessage(body))
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var resp ValidationErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Contains(t, resp.Details, "Quantity")
		})
	}

	f.carts.AssertExpectations(t)
	f.carts.AssertNumberOfCalls(t, "UpdateQuantity", 3)
}

func intPtr(n int) *int {
	return &n
}

func TestCartHandler_AddItem(t *testing.T) {
	f := newCartFixture()
	line := watchLine(f.caller.UserID, 1, 3)
	f.carts.On("AddItem", mock.Anything, f.caller.UserID, line.ProductID, 0).Return(&line, nil).Once()

	rr := f.serve(t, http.MethodPost, "/cart/items", AddItemRequest{ProductID: line.ProductID})
	require.Equal(t, http.StatusCreated, rr.Code)

	var got cart.Line
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, line.ID, got.ID)
	assert.Equal(t, 1, got.Quantity)
	f.carts.AssertExpectations(t)
}
