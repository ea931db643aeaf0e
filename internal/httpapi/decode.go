package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"smart-tasks-backend/internal/apperr"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// mintrim=N: at least N characters once surrounding whitespace is removed.
	_ = v.RegisterValidation("mintrim", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
	})

	return v
}

// Decode reads a JSON body into dst and runs struct validation on it.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("body", "request body is required")
		}
		return apperr.Invalid("body", "invalid json: "+err.Error())
	}
	return Validate(dst)
}

// DecodeOptional is Decode for endpoints whose body may be omitted; an
// empty body leaves dst at its zero value but still validates it.
func DecodeOptional(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperr.Invalid("body", "unreadable request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Validate(dst)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return Decode(r, dst)
}

// Validate runs the struct tags on v and converts failures to a
// *apperr.ValidationError keyed by json field name.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &apperr.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "mintrim":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "email":
		return "must be a valid email address"
	case "hexcolor":
		return "must be a hex color such as #3B82F6"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// QueryBool parses ?name=true|false. ok is false when the parameter is absent.
func QueryBool(r *http.Request, name string) (val bool, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, apperr.Invalid(name, "must be true or false")
	}
	return b, true, nil
}

// QueryUint parses ?name=<id>. ok is false when the parameter is absent.
func QueryUint(r *http.Request, name string) (val uint, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, apperr.Invalid(name, "must be a positive integer")
	}
	return uint(n), true, nil
}

// QueryString returns the trimmed ?name value.
func QueryString(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}
