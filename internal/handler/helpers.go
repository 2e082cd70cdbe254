package handler

import (
	"errors"
	"net/http"
	"reflect"

	"fieldops/internal/apierror"
	"fieldops/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs go-playground/validator tags.
// Returns false and writes the error envelope if validation fails; the
// caller must return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON body", apierror.New(err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		respondError(c, http.StatusBadRequest, "validation failed", apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondOK writes the success envelope {status, success, message, data}.
func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, dto.Envelope{Status: status, Success: true, Message: message, Data: data})
}

// respondError writes the failure envelope {status, success, message, error}.
func respondError(c *gin.Context, status int, message string, errPayload interface{}) {
	c.JSON(status, dto.Envelope{Status: status, Success: false, Message: message, Error: errPayload})
}

// respondDomainError maps the error taxonomy onto HTTP status codes:
// not-found is 404, an exhausted optimistic-save retry is 409, everything
// else (validation, insufficient stock) is 400 with the cause in the message.
func respondDomainError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case apierror.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, apierror.ErrVersionConflict):
		status = http.StatusConflict
	}
	respondError(c, status, err.Error(), apierror.New(err.Error()))
}
