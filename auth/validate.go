package auth

import (
	"fmt"
	"strings"
)

// Validator checks one aspect of a request's shape. A nil return means the
// check passed; otherwise the error describes the violation for the caller.
type Validator interface {
	Validate(req Request) error
}

// Validate runs every validator and collects all violations. Unlike
// authentication, validation never short-circuits.
func Validate(validators []Validator, req Request) []string {
	var violations []string
	for _, v := range validators {
		if v == nil {
			continue
		}
		if err := v.Validate(req); err != nil {
			violations = append(violations, err.Error())
		}
	}
	return violations
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(req Request) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(req Request) error { return f(req) }

// RequiredHeader checks that a header is present and non-empty. When value
// is non-empty the header must also match it exactly.
func RequiredHeader(name string, value ...string) Validator {
	return ValidatorFunc(func(req Request) error {
		got := req.Header(name)
		if got == "" {
			return fmt.Errorf("missing required header %q", name)
		}
		if len(value) > 0 && got != value[0] {
			return fmt.Errorf("header %q: expected %q, got %q", name, value[0], got)
		}
		return nil
	})
}

// ContentType checks the Content-Type header against an allow-list. Media
// type parameters such as charset are ignored in the comparison.
func ContentType(allowed ...string) Validator {
	return ValidatorFunc(func(req Request) error {
		got := req.Header("Content-Type")
		mediaType := strings.TrimSpace(strings.ToLower(got))
		if i := strings.IndexByte(mediaType, ';'); i >= 0 {
			mediaType = strings.TrimSpace(mediaType[:i])
		}
		for _, a := range allowed {
			if mediaType == strings.ToLower(a) {
				return nil
			}
		}
		return fmt.Errorf("unsupported content type %q (allowed: %s)", got, strings.Join(allowed, ", "))
	})
}
