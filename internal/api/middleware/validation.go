package middleware

import (
	goerrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/dmlat/STT-Telegram/internal/api/errors"
)

// Validator is implemented by request types with domain rules that tag
// validation cannot express.
type Validator interface {
	Validate() error
}

// ValidateRequest binds a JSON body and runs both tag and domain
// validation.
func ValidateRequest(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return errors.NewValidationError("Validation failed", fieldErrors(err))
	}
	return domainValidate(req)
}

// ValidateQuery binds query parameters and runs the same checks.
func ValidateQuery(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return errors.NewValidationError("Invalid query parameters", fieldErrors(err))
	}
	return domainValidate(req)
}

// ValidateForm binds multipart or urlencoded form fields.
func ValidateForm(c *gin.Context, req interface{}) error {
	if err := c.ShouldBind(req); err != nil {
		return errors.NewValidationError("Validation failed", fieldErrors(err))
	}
	return domainValidate(req)
}

func domainValidate(req interface{}) error {
	if v, ok := req.(Validator); ok {
		if err := v.Validate(); err != nil {
			var apiErr *errors.APIError
			if goerrors.As(err, &apiErr) {
				return apiErr
			}
			return errors.NewValidationError(err.Error(), nil)
		}
	}
	return nil
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)

	var validationErrs validator.ValidationErrors
	if goerrors.As(err, &validationErrs) {
		for _, fieldError := range validationErrs {
			field := strings.ToLower(fieldError.Field())

			switch fieldError.Tag() {
			case "required":
				out[field] = "is required"
			case "min":
				out[field] = "is below the minimum"
			case "max":
				out[field] = "is above the maximum"
			case "url":
				out[field] = "must be a valid URL"
			case "oneof":
				out[field] = "must be one of the allowed values"
			default:
				out[field] = "is invalid"
			}
		}
		return out
	}

	out["request"] = "malformed request body"
	return out
}
