package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// describe turns a validator failure into a short human message.
func describe(fe validator.FieldError) string {
	param := fe.Param()
	text := isText(fe.Kind())

	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_with", "required_without":
		return "is required"
	case "nonblank":
		return "must not be blank"
	case "min", "gte":
		if text {
			return fmt.Sprintf("must be at least %s characters", param)
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s items", param)
		}
		return "must be at least " + param
	case "max", "lte":
		if text {
			return fmt.Sprintf("must be at most %s characters", param)
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s items", param)
		}
		return "must be at most " + param
	case "gt":
		return "must be greater than " + param
	case "lt":
		return "must be less than " + param
	case "len":
		if text {
			return fmt.Sprintf("must be exactly %s characters", param)
		}
		return "must have length " + param
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(param), ", ")
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "alpha":
		return "must contain only letters"
	case "alphanum":
		return "must contain only letters and digits"
	case "numeric":
		return "must be numeric"
	case "eqfield":
		return "must equal " + param
	case "nefield":
		return "must differ from " + param
	case "gtfield", "gtefield":
		return "must be after " + param
	case "ltfield", "ltefield":
		return "must be before " + param
	}
	if param != "" {
		return fmt.Sprintf("failed %s=%s", fe.Tag(), param)
	}
	return "failed " + fe.Tag()
}

func isText(k reflect.Kind) bool {
	return k == reflect.String
}
