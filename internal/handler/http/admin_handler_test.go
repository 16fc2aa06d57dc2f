package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/user"
)

type adminFixture struct {
	orders  *MockOrderService
	coupons *MockCouponService
	users   *MockUserService
	admin   auth.Identity
}

func newAdminFixture() *adminFixture {
	return &adminFixture{
		orders:  new(MockOrderService),
		coupons: new(MockCouponService),
		users:   new(MockUserService),
		admin:   auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleAdmin},
	}
}

func (f *adminFixture) serve(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h := NewAdminHandler(f.orders, f.coupons, f.users)
	newTestRouter(f.admin, h.RegisterRoutes).ServeHTTP(rr, req)
	return rr
}

func TestAdminHandler_UpdateStatus(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	testCases := []struct {
		name         string
		body         string
		setupMock    func(m *MockOrderService)
		expectedCode int
	}{
		{
			name: "success",
			body: `{"status":"COMPLETED"}`,
			setupMock: func(m *MockOrderService) {
				m.On("UpdateStatus", mock.Anything, id, order.StatusCompleted).
					Return(&order.Order{ID: id, Status: order.StatusCompleted}, nil).Once()
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "invalid_transition",
			body: `{"status":"PLACED"}`,
			setupMock: func(m *MockOrderService) {
				m.On("UpdateStatus", mock.Anything, id, order.StatusPlaced).
					Return(nil, fmt.Errorf("%w: CANCELLED -> PLACED", order.ErrInvalidStatusTransition)).Once()
			},
			expectedCode: http.StatusConflict,
		},
		{
			name: "unknown_status",
			body: `{"status":"SHIPPED"}`,
			setupMock: func(m *MockOrderService) {
				m.On("UpdateStatus", mock.Anything, id, order.Status("SHIPPED")).Return(nil, order.ErrInvalidStatus).Once()
			},
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "missing_status",
			body:         `{}`,
			setupMock:    func(m *MockOrderService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "unknown_field",
			body:         `{"status":"COMPLETED","note":"x"}`,
			setupMock:    func(m *MockOrderService) {},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAdminFixture()
			tc.setupMock(f.orders)

			rr := f.serve(t, http.MethodPut, "/admin/orders/"+id.String()+"/status", tc.body)
			assert.Equal(t, tc.expectedCode, rr.Code, rr.Body.String())
			f.orders.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_CreateCoupon(t *testing.T) {
	f := newAdminFixture()
	f.coupons.On("Create", mock.Anything, mock.MatchedBy(func(c *coupon.Coupon) bool {
		return c.Code == "SPRING" && c.Kind == coupon.KindPercentage && c.Value.Equal(decimal.NewFromInt(15)) && c.Active
	})).Return(&coupon.Coupon{ID: uuid.Must(uuid.NewV4()), Code: "SPRING", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(15), Active: true}, nil).Once()

	rr := f.serve(t, http.MethodPost, "/admin/coupons", `{"code":"SPRING","kind":"percentage","value":"15"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	f.coupons.AssertExpectations(t)

	rr = f.serve(t, http.MethodPost, "/admin/coupons", `{"code":"BAD","kind":"bogo","value":"1"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp.Details, "Kind")
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	target := uuid.Must(uuid.NewV4())

	testCases := []struct {
		name         string
		id           uuid.UUID
		err          error
		expectedCode int
	}{
		{name: "success", id: target, expectedCode: http.StatusNoContent},
		{name: "self", err: user.ErrCannotDeleteSelf, expectedCode: http.StatusForbidden},
		{name: "not_found", id: target, err: user.ErrNotFound, expectedCode: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAdminFixture()
			id := tc.id
			if id == uuid.Nil {
				id = f.admin.UserID
			}
			f.users.On("DeleteUser", mock.Anything, f.admin, id).Return(tc.err).Once()

			rr := f.serve(t, http.MethodDelete, "/admin/users/"+id.String(), "")
			assert.Equal(t, tc.expectedCode, rr.Code)
			f.users.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_CreateUser(t *testing.T) {
	f := newAdminFixture()
	created := &user.User{ID: uuid.Must(uuid.NewV4()), Name: "Root", Email: "root@example.com", Role: auth.RoleAdmin}
	f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *user.User) bool {
		return u.Role == auth.RoleAdmin && u.Email == "root@example.com"
	}), "password123").Return(created, nil).Once()

	rr := f.serve(t, http.MethodPost, "/admin/users", `{"name":"Root","email":"root@example.com","password":"password123","role":"admin"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp UserResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.NotContains(t, rr.Body.String(), "password")
	f.users.AssertExpectations(t)
}
