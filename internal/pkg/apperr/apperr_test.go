package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Validation("email is required"), http.StatusBadRequest},
		{NotFound("watch", "w1"), http.StatusNotFound},
		{fmt.Errorf("create customer: %w", ErrDuplicateKey), http.StatusConflict},
		{Conflict("watch w1 changed"), http.StatusConflict},
		{PermissionDenied("tenant mismatch"), http.StatusForbidden},
		{fmt.Errorf("list: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		require.Equal(t, c.want, HTTPStatus(c.err), "%v", c.err)
	}
}

func TestBuildersWrapSentinels(t *testing.T) {
	err := NotFound("customer", "c1")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "customer c1")

	err = Validation("sale price must be positive, got %s", "-1")
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "got -1")
}
