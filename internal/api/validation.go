package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var setupValidator sync.Once

// configureValidator makes validator report json tag names so error locations match the
// request body, and registers the finite rule used by PredictRequest.
func configureValidator() {
	setupValidator.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			switch fl.Field().Kind() {
			case reflect.Float32, reflect.Float64:
				f := fl.Field().Float()
				return !math.IsNaN(f) && !math.IsInf(f, 0)
			default:
				return true
			}
		})
	})
}

// Validate checks r against the rules applied to POST /predict bodies.
func (r PredictRequest) Validate() []ValidationError {
	configureValidator()
	if err := binding.Validator.ValidateStruct(&r); err != nil {
		return validationDetails(err)
	}
	return nil
}

// coercionErrors lists body fields whose JSON value could not be read as a number.
type coercionErrors []ValidationError

func (e coercionErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, detail := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(detail.Loc, "."), detail.Msg))
	}
	return strings.Join(parts, "; ")
}

// validationDetails converts a binding error into field-level details.
func validationDetails(err error) []ValidationError {
	var (
		coerceErrs coercionErrors
		fieldErrs  validator.ValidationErrors
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &coerceErrs):
		return coerceErrs
	case errors.As(err, &fieldErrs):
		details := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, fieldDetail(fe))
		}
		return details
	case errors.As(err, &typeErr):
		return []ValidationError{{
			Loc:  bodyLoc(typeErr.Field),
			Msg:  fmt.Sprintf("Input should be a valid %s", typeName(typeErr.Type)),
			Type: typeName(typeErr.Type) + "_type",
		}}
	case errors.Is(err, io.EOF):
		return []ValidationError{{Loc: bodyLoc(""), Msg: "Field required", Type: "missing"}}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return []ValidationError{{Loc: bodyLoc(""), Msg: "JSON decode error", Type: "json_invalid"}}
	default:
		return []ValidationError{{Loc: bodyLoc(""), Msg: err.Error(), Type: "value_error"}}
	}
}

func fieldDetail(fe validator.FieldError) ValidationError {
	detail := ValidationError{Loc: bodyLoc(fe.Field())}
	switch fe.Tag() {
	case "required":
		detail.Type = "missing"
		detail.Msg = "Field required"
		return detail
	case "finite":
		detail.Type = "finite_number"
		detail.Msg = "Input should be a finite number"
		return detail
	case "gt":
		detail.Type = "greater_than"
		detail.Msg = "Input should be greater than " + fe.Param()
	case "gte":
		detail.Type = "greater_than_equal"
		detail.Msg = "Input should be greater than or equal to " + fe.Param()
	case "lt":
		detail.Type = "less_than"
		detail.Msg = "Input should be less than " + fe.Param()
	case "lte":
		detail.Type = "less_than_equal"
		detail.Msg = "Input should be less than or equal to " + fe.Param()
	default:
		detail.Type = fe.Tag()
		detail.Msg = fe.Error()
	}
	detail.Input = fe.Value()
	return detail
}

func bodyLoc(field string) []string {
	loc := []string{"body"}
	for _, part := range strings.Split(field, ".") {
		if part != "" {
			loc = append(loc, part)
		}
	}
	return loc
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.String:
		return "string"
	case reflect.Struct, reflect.Map:
		return "dict"
	default:
		return t.Kind().String()
	}
}
