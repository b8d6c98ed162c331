package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Errors maps a field name to the messages for every rule that field
// violated. All rules are evaluated independently so a single response
// can report every problem at once instead of stopping at the first.
type Errors map[string][]string

// New returns an empty error map ready for Add calls.
func New() Errors {
	return Errors{}
}

// Add appends a message to the given field's list.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Merge folds another error map into this one.
func (e Errors) Merge(other Errors) {
	for field, messages := range other {
		e[field] = append(e[field], messages...)
	}
}

// Any reports whether any field has at least one message.
func (e Errors) Any() bool {
	return len(e) > 0
}

func init() {
	// Report fields by their json names so error maps line up with
	// the request bodies clients actually sent.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// FromBinding converts a gin binding error into field-keyed messages.
// Validator errors carry one entry per violated rule; unmarshal type
// errors map to the offending field; anything else (malformed JSON)
// lands under non_field_errors.
func FromBinding(err error) Errors {
	errs := New()

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			errs.Add(fe.Field(), messageFor(fe))
		}
		return errs
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		errs.Add(typeErr.Field, typeMessage(typeErr))
		return errs
	}

	errs.Add("non_field_errors", "invalid request body")
	return errs
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	default:
		return "is invalid"
	}
}

func typeMessage(typeErr *json.UnmarshalTypeError) string {
	switch typeErr.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "must be a valid integer"
	case reflect.Float32, reflect.Float64:
		return "must be a valid number"
	case reflect.Bool:
		return "must be a boolean"
	case reflect.Slice, reflect.Array:
		return "must be a list"
	default:
		return "must be a valid value"
	}
}
