package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackroad.io/operator/models"
)

func TestMapErrorToResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrRuleNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("lookup: %w", models.ErrTaskNotFound), http.StatusNotFound, "not_found"},
		{models.ErrInvalidCondition, http.StatusBadRequest, "invalid_condition"},
		{models.ErrDuplicateRule, http.StatusConflict, "conflict"},
		{models.ErrAwaitingApproval, http.StatusConflict, "awaiting_approval"},
		{fmt.Errorf("verify: %w", models.ErrInvalidApproval), http.StatusForbidden, "invalid_approval"},
		{models.ErrLedgerCorrupted, http.StatusInternalServerError, "ledger_corrupted"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			mapErrorToResponse(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.True(t, c.IsAborted())

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error)
			assert.NotContains(t, body.Message, "disk on fire")
		})
	}
}

func TestQueryInt(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(target string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		return c
	}

	v, err := queryInt(newCtx("/?hours=6"), "hours", 24)
	require.NoError(t, err)
	assert.Equal(t, 6, v)

	v, err = queryInt(newCtx("/"), "hours", 24)
	require.NoError(t, err)
	assert.Equal(t, 24, v)

	_, err = queryInt(newCtx("/?hours=six"), "hours", 24)
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}
