package entity

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zeebo/errs"
)

// ErrValidation is the class of every failed entity construction or patch.
var ErrValidation = errs.Class("validation")

// TimeLayout is the wire and storage format of every entity timestamp.
const TimeLayout = "2006-01-02T15:04:05Z"

// DemoUserID is the single identity used wherever an actor is needed.
const DemoUserID = "demo-user"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs the struct tag rules and converts failures into ErrValidation
// errors naming the offending field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return ErrValidation.New("%s is required", fe.Field())
		case "max":
			return ErrValidation.New("%s exceeds maximum of %s", fe.Field(), fe.Param())
		case "oneof":
			return ErrValidation.New("%s: unrecognized value %q", fe.Field(), fe.Value())
		default:
			return ErrValidation.New("%s failed %s", fe.Field(), fe.Tag())
		}
	}
	return ErrValidation.Wrap(err)
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeLayout)
}

// ParseTime parses a TimeLayout string, also accepting RFC 3339 with an offset.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// NextTimestamp returns the timestamp to stamp on a mutation made at now, strictly
// after prev so ordering survives sub-second updates.
func NextTimestamp(prev string, now time.Time) string {
	next := now.UTC().Truncate(time.Second)
	if p, err := ParseTime(prev); err == nil && !next.After(p) {
		next = p.Add(time.Second)
	}
	return next.Format(TimeLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
