package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var messages = map[string]string{
	"required":           "This field is required.",
	"email":              "Enter a valid email address.",
	"url":                "Enter a valid URL.",
	"bcp47_language_tag": "Enter a valid language code.",
	"eqfield":            "The two fields didn't match.",
}

// Setup makes v report json field names; call once on the engine gin binds with.
func Setup(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// SetupGin applies Setup to the validator behind gin's request binding.
func SetupGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Setup(v)
	}
}

// New returns a validator configured like the request binder.
func New() *validator.Validate {
	v := validator.New()
	Setup(v)
	return v
}

// Translate turns validation errors into field to message pairs.
// ok is false when err is not a validation failure.
func Translate(err error) (fields map[string]string, ok bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	fields = make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return fields, true
}

func message(fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is at least %s.", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is at most %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
