package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/middleware"
)

var (
	errInvalidBody = apperr.BadRequest("invalid request body")
	errInvalidID   = apperr.BadRequest("invalid id")
	errValidation  = apperr.BadRequest("validation failed")
	errNoIdentity  = apperr.Unauthorized("unauthorized")
)

func respondWithError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// bindJSON decodes the body into dst and reports validation failures per field.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondWithError(c, validationError(err))
		return false
	}
	return true
}

func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errInvalidBody.WithCause(err)
	}
	details := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := lowerCamel(fieldError.Field())
		switch fieldError.Tag() {
		case "required":
			details = append(details, fmt.Sprintf("%s is required", field))
		case "email":
			details = append(details, fmt.Sprintf("%s must be a valid email", field))
		case "min", "gte":
			details = append(details, fmt.Sprintf("%s must be at least %s", field, fieldError.Param()))
		case "gt":
			details = append(details, fmt.Sprintf("%s must be greater than %s", field, fieldError.Param()))
		case "oneof":
			details = append(details, fmt.Sprintf("%s must be one of %s", field, fieldError.Param()))
		default:
			details = append(details, fmt.Sprintf("%s is invalid", field))
		}
	}
	return errValidation.WithDetails(details)
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param(name)))
	if err != nil {
		respondWithError(c, errInvalidID.WithDetails(map[string]string{"param": name}))
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseObjectID(raw, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, errInvalidID.WithDetails(map[string]string{"field": field})
	}
	return id, nil
}

// identity returns the authenticated caller or writes 401.
func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		respondWithError(c, errNoIdentity)
		return auth.Identity{}, false
	}
	return id, true
}
