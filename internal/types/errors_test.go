package types

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationBadLocation, http.StatusBadRequest},
		{ErrCodeAuthCredentialMissing, http.StatusUnauthorized},
		{ErrCodeAuthNoRefreshToken, http.StatusUnauthorized},
		{ErrCodeNotFoundMunicipality, http.StatusNotFound},
		{ErrCodeNotFoundCalendar, http.StatusNotFound},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{ErrCodeUpstreamForecast, http.StatusBadGateway},
		{ErrCodeUpstreamMessaging, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_new"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.code.HTTPStatus(), "code %s", tc.code)
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeUpstreamForecast, "forecast fetch failed", underlying)

	assert.Equal(t, "upstream_forecast_unavailable: forecast fetch failed", appErr.Error())
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())
	require.ErrorIs(t, appErr, underlying)
}

func TestAppError_ErrorsAsThroughWrapping(t *testing.T) {
	inner := NewAppError(ErrCodeNotFoundMunicipality, "no such place", nil)
	wrapped := NewAppError(ErrCodeUpstreamForecast, "lookup failed", inner)

	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, ErrCodeUpstreamForecast, appErr.Code)
	require.ErrorIs(t, wrapped, inner)
}
