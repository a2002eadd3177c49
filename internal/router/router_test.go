package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/util"
)

func TestResolver_DefaultRoutes(t *testing.T) {
	r := New(nil)

	tests := []struct {
		path    string
		service string
	}{
		{"/spring/auth/login", "Auth-Service"},
		{"/spring/auth/validateToken", "Auth-Service"},
		{"/spring/users", "User-Service"},
		{"/spring/users/42", "User-Service"},
		{"/spring/products/7/reviews", "Product-Service"},
		{"/spring/ordering/carts", "Ordering-Service"},
		{"/spring/payments/charge", "Payment-Service"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			service, err := r.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.service, service)
		})
	}
}

func TestResolver_NoMatch(t *testing.T) {
	r := New(nil)

	for _, path := range []string{"/", "/health", "/spring", "/api/users"} {
		t.Run(path, func(t *testing.T) {
			_, err := r.Resolve(path)
			require.Error(t, err)

			var notFound *util.RouteNotFoundError
			require.True(t, errors.As(err, &notFound))
			assert.Equal(t, path, notFound.Path)
			assert.ErrorIs(t, err, util.ErrNotFound)
		})
	}
}

func TestResolver_LongestPrefixWins(t *testing.T) {
	r := New([]Route{
		{Prefix: "/spring/users", Service: "User-Service"},
		{Prefix: "/spring/users/admin", Service: "Admin-Service"},
	})

	service, err := r.Resolve("/spring/users/admin/roles")
	require.NoError(t, err)
	assert.Equal(t, "Admin-Service", service)

	service, err = r.Resolve("/spring/users/42")
	require.NoError(t, err)
	assert.Equal(t, "User-Service", service)
}

func TestResolver_FromConfig(t *testing.T) {
	r := FromConfig([]config.RouteConfig{
		{Prefix: "/api/billing", Service: "Billing-Service"},
	})

	service, err := r.Resolve("/api/billing/invoices")
	require.NoError(t, err)
	assert.Equal(t, "Billing-Service", service)

	_, err = r.Resolve("/spring/users")
	assert.Error(t, err)
}

func TestResolver_Reload(t *testing.T) {
	r := New(nil)

	r.Reload([]Route{{Prefix: "/v2", Service: "V2-Service"}})

	service, err := r.Resolve("/v2/anything")
	require.NoError(t, err)
	assert.Equal(t, "V2-Service", service)

	_, err = r.Resolve("/spring/users")
	assert.Error(t, err)

	// Empty reload restores the built-in table
	r.Reload(nil)
	service, err = r.Resolve("/spring/users")
	require.NoError(t, err)
	assert.Equal(t, "User-Service", service)
}

func TestResolver_Routes_ReturnsCopy(t *testing.T) {
	r := New(nil)

	routes := r.Routes()
	require.NotEmpty(t, routes)
	routes[0].Service = "Mutated"

	service, err := r.Resolve("/spring/products")
	require.NoError(t, err)
	assert.Equal(t, "Product-Service", service)
}
