package handler

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// echoValidator adapts go-playground/validator to echo.Validator. Messages
// name fields by their JSON key so clients can match them to the payload.
type echoValidator struct {
	v *validator.Validate
}

func NewValidator() *echoValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.ValidRole(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return &echoValidator{v: v}
}

func (ev *echoValidator) Validate(i any) error {
	err := ev.v.Struct(i)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// fieldError renders one failed rule. min and max count characters.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "role":
		return fmt.Sprintf("%s must be %q or %q", field, domain.RoleUser, domain.RoleAdmin)
	case "password":
		return fmt.Sprintf("%s must be at most %d bytes", field, maxPasswordBytes)
	case "username":
		return field + " may only contain letters, digits, '.', '_' and '-'"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
