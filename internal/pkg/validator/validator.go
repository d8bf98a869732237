package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
}

// Validate returns a field -> failing tag map, or nil when v is valid.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		out[fieldErr.Field()] = fieldErr.Tag()
	}
	return out
}
