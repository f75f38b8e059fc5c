package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "intent not found maps to 404",
			err:        fmt.Errorf("wrapped: %w", ErrIntentNotFound),
			expectCode: http.StatusNotFound,
			expectMsg:  "intent not found",
		},
		{
			name:       "duplicate delivery maps to 409",
			err:        &deliveryError{DeliveryID: "abc-123"},
			expectCode: http.StatusConflict,
			expectMsg:  "delivery already processed",
		},
		{
			name:       "unknown error maps to 500",
			err:        errors.New("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := mapError(tt.err)
			assert.Equal(t, tt.expectCode, code)
			assert.Equal(t, tt.expectMsg, msg)
		})
	}
}

func TestDeliveryError_UnwrapsToSentinel(t *testing.T) {
	err := &deliveryError{DeliveryID: "xyz"}
	assert.True(t, errors.Is(err, ErrDuplicateDelivery))
	assert.Contains(t, err.Error(), "xyz")
}
