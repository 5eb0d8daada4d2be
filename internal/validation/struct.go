package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

var v *validator.Validate

// usStates are the two-letter codes accepted as governing state.
var usStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {}, "DE": {}, "DC": {}, "FL": {},
	"GA": {}, "HI": {}, "ID": {}, "IL": {}, "IN": {}, "IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {},
	"MD": {}, "MA": {}, "MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {}, "NH": {},
	"NJ": {}, "NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {}, "OK": {}, "OR": {}, "PA": {}, "RI": {},
	"SC": {}, "SD": {}, "TN": {}, "TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {},
	"WY": {},
}

func init() {
	v = validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("usstate", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(strings.ToUpper(fl.Field().String()))
		if val == "" {
			return true
		}
		_, ok := usStates[val]
		return ok
	})
}

// IsUSState reports whether code is an accepted state code.
func IsUSState(code string) bool {
	_, ok := usStates[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Fields validates s by its struct tags and returns field -> messages.
// Nested fields are keyed by their JSON path, e.g. "homeowner.email".
func Fields(s any) (map[string][]string, error) {
	err := v.Struct(s)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}

	out := make(map[string][]string)
	for _, e := range ve {
		field := fieldPath(e)
		out[field] = append(out[field], message(e))
	}
	return out, nil
}

// Struct validates s and returns a validation AppError listing every problem.
func Struct(s any) error {
	fields, err := Fields(s)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "validation failed")
	}
	if len(fields) > 0 {
		return apperror.Validation("invalid input", fields)
	}
	return nil
}

func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func message(e validator.FieldError) string {
	isString := e.Kind() == reflect.String
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min", "gte":
		if isString {
			return fmt.Sprintf("Must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("Must be at least %s", e.Param())
	case "max", "lte":
		if isString {
			return fmt.Sprintf("Must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("Must be at most %s", e.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", e.Param())
	case "oneof":
		return "Value is not allowed"
	case "uuid", "uuid4":
		return "Invalid UUID format"
	case "usstate":
		return "Invalid state code (use the two-letter abbreviation, e.g. TX)"
	case "dive":
		return "Invalid item"
	}
	return e.Error()
}
