// internal/handlers/common.go
package handlers

import (
	"math/big"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/utils"
)

// identityFromContext returns the authenticated caller's id, or reports
// an unauthorized response and false.
func identityFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := utils.GetIdentityIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authentication required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.UnauthorizedResponse(c, "Invalid identity")
		return uuid.Nil, false
	}
	return id, true
}

// pathUUID parses a uuid path parameter, or reports a bad request and
// false.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// parseAmount parses a non-negative integer amount expressed as a
// decimal string.
func parseAmount(c *gin.Context, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		utils.BadRequestResponse(c, "Invalid amount", "amount must be a base-10 integer string")
		return nil, false
	}
	return amount, true
}

// bindAndValidate binds the JSON body and runs struct validation,
// reporting the response on failure.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

// timestampOrNow returns the "timestamp" query parameter as unix
// seconds, or the supplied fallback when absent.
func timestampOrNow(c *gin.Context, fallback int64) (int64, error) {
	raw := c.Query("timestamp")
	if raw == "" {
		return fallback, nil
	}
	ts, ok := new(big.Int).SetString(raw, 10)
	if !ok || !ts.IsInt64() {
		return 0, apperrors.Validation("timestamp must be unix seconds")
	}
	return ts.Int64(), nil
}
