package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"shop-core/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report JSON field names instead of Go field names
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("money", validateMoney)
}

// validateMoney accepts non-negative decimal strings that fit the price
// columns: at most two fractional digits and below domain.MaxPrice
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.LessThan(domain.MaxPrice) && d.Exponent() >= -2
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes a JSON request body into v and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return ValidateRequest(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors lists one message per failing field. Errors that do
// not come from the validator yield nil.
func FormatValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

var fieldMessages = map[string]func(validator.FieldError) string{
	"required": func(validator.FieldError) string { return "This field is required" },
	"email":    func(validator.FieldError) string { return "Invalid email format" },
	"uuid":     func(validator.FieldError) string { return "Must be a valid UUID" },
	"money": func(validator.FieldError) string {
		return "Must be a non-negative amount below 100000000 with at most two decimal places"
	},
	"min": func(fe validator.FieldError) string {
		if fe.Field() == "quantity" {
			return "Quantity must be at least " + fe.Param() + "."
		}
		return "Must be at least " + fe.Param() + " characters"
	},
	"max": func(fe validator.FieldError) string { return "Must be at most " + fe.Param() + " characters" },
	"gte": func(fe validator.FieldError) string { return "Must be greater than or equal to " + fe.Param() },
	"lte": func(fe validator.FieldError) string { return "Must be less than or equal to " + fe.Param() },
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Tag()]; ok {
		return msg(fe)
	}
	return "Invalid value"
}
