package middleware

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// EnumTag declares a validation tag accepting a fixed set of values.
// Empty strings pass so that tags compose with omitempty/required.
type EnumTag struct {
	Tag             string
	Values          []string
	CaseInsensitive bool
}

// RegisterEnumTags registers enum tags on gin's binding validator and names
// fields after their json tags in error details
func RegisterEnumTags(tags ...EnumTag) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	return registerEnumTags(v, tags...)
}

// NewValidator returns a standalone validator with the enum tags registered
func NewValidator(tags ...EnumTag) (*validator.Validate, error) {
	v := validator.New()
	if err := registerEnumTags(v, tags...); err != nil {
		return nil, err
	}
	return v, nil
}

func registerEnumTags(v *validator.Validate, tags ...EnumTag) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	for _, tag := range tags {
		if err := v.RegisterValidation(tag.Tag, enumValidator(tag)); err != nil {
			return fmt.Errorf("register %s: %w", tag.Tag, err)
		}
	}
	return nil
}

func enumValidator(tag EnumTag) validator.Func {
	allowed := make(map[string]bool, len(tag.Values))
	for _, v := range tag.Values {
		if tag.CaseInsensitive {
			v = strings.ToLower(v)
		}
		allowed[v] = true
	}

	return func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		if value == "" {
			return true
		}
		if tag.CaseInsensitive {
			value = strings.ToLower(value)
		}
		return allowed[value]
	}
}

// ValidationErrorFormatter formats validation errors into a field -> message map
func ValidationErrorFormatter(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		fields[e.Field()] = formatValidationError(e)
	}
	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "dive":
		return "contains an invalid entry"
	default:
		return fmt.Sprintf("is not a valid %s", strings.ReplaceAll(e.Tag(), "_", " "))
	}
}
