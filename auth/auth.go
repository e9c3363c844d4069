package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"
)

// Request is the read-only view of an inbound HTTP request that rules and
// validators evaluate against. The raw body must be re-readable: calling
// RawBody never consumes the stream seen by downstream handlers.
type Request interface {
	Method() string
	Path() string
	// Header returns the first value for the named header using
	// case-insensitive lookup, or "" when absent.
	Header(name string) string
	RawBody() []byte
}

// Rule is an authentication predicate. Authenticate must not panic; rules
// wrapping caller-supplied code are responsible for recovering and failing
// closed.
type Rule interface {
	Authenticate(req Request) bool
}

// Authenticate evaluates a rule against a request. A nil rule always passes.
func Authenticate(rule Rule, req Request) bool {
	if rule == nil {
		return true
	}
	return rule.Authenticate(req)
}

// Algorithm names a supported HMAC hash for signature rules.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

func (a Algorithm) hashFunc() func() hash.Hash {
	switch a {
	case SHA1:
		return sha1.New
	case SHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

// SignatureRule verifies an HMAC hex digest of the raw request body carried
// in a header, e.g. GitHub's X-Hub-Signature-256.
type SignatureRule struct {
	// Header names the header carrying the digest.
	Header string
	// Secret is the shared HMAC key.
	Secret string
	// Algorithm selects the hash. Defaults to SHA256.
	Algorithm Algorithm
	// Prefix, if non-empty, is stripped from the header value before
	// comparison (e.g. "sha256=").
	Prefix string
}

// Signature creates a SignatureRule with optional configuration.
func Signature(header, secret string, optFns ...func(r *SignatureRule)) *SignatureRule {
	r := &SignatureRule{Header: header, Secret: secret, Algorithm: SHA256}
	for _, fn := range optFns {
		fn(r)
	}
	return r
}

// WithAlgorithm selects the HMAC hash.
func WithAlgorithm(a Algorithm) func(r *SignatureRule) {
	return func(r *SignatureRule) { r.Algorithm = a }
}

// WithPrefix sets the digest prefix to strip, e.g. "sha256=".
func WithPrefix(prefix string) func(r *SignatureRule) {
	return func(r *SignatureRule) { r.Prefix = prefix }
}

// Authenticate implements Rule. Comparison is constant-time.
func (r *SignatureRule) Authenticate(req Request) bool {
	got := req.Header(r.Header)
	if got == "" {
		return false
	}
	if r.Prefix != "" {
		if !strings.HasPrefix(got, r.Prefix) {
			return false
		}
		got = got[len(r.Prefix):]
	}

	mac := hmac.New(r.Algorithm.hashFunc(), []byte(r.Secret))
	mac.Write(req.RawBody())
	want := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(got)), []byte(want))
}

// BearerRule matches an Authorization header of the form "Bearer <token>".
// The scheme is case-insensitive, the token match is exact.
type BearerRule struct {
	Token string
}

// Bearer creates a BearerRule for the given token.
func Bearer(token string) *BearerRule {
	return &BearerRule{Token: token}
}

// Authenticate implements Rule.
func (r *BearerRule) Authenticate(req Request) bool {
	value := req.Header("Authorization")
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return hmac.Equal([]byte(strings.TrimSpace(token)), []byte(r.Token))
}

// APIKeyRule matches a named header against a configured key.
type APIKeyRule struct {
	Header string
	Key    string
}

// APIKey creates an APIKeyRule for the given header and key.
func APIKey(header, key string) *APIKeyRule {
	return &APIKeyRule{Header: header, Key: key}
}

// Authenticate implements Rule.
func (r *APIKeyRule) Authenticate(req Request) bool {
	return hmac.Equal([]byte(req.Header(r.Header)), []byte(r.Key))
}

// BasicRule matches HTTP basic authentication credentials. Malformed
// payloads (bad base64, missing separator) fail closed.
type BasicRule struct {
	Username string
	Password string
}

// Basic creates a BasicRule for the given credentials.
func Basic(username, password string) *BasicRule {
	return &BasicRule{Username: username, Password: password}
}

// Authenticate implements Rule.
func (r *BasicRule) Authenticate(req Request) bool {
	value := req.Header("Authorization")
	scheme, payload, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(user), []byte(r.Username)) &&
		hmac.Equal([]byte(pass), []byte(r.Password))
}

// CustomRule wraps an arbitrary predicate. A panic inside the predicate is
// treated as authentication failure, never propagated.
type CustomRule struct {
	Predicate func(req Request) bool
}

// Custom creates a CustomRule from a predicate.
func Custom(predicate func(req Request) bool) *CustomRule {
	return &CustomRule{Predicate: predicate}
}

// Authenticate implements Rule.
func (r *CustomRule) Authenticate(req Request) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if r.Predicate == nil {
		return false
	}
	return r.Predicate(req)
}

// AnyOfRule passes when at least one sub-rule passes. Evaluation
// short-circuits on the first success.
type AnyOfRule struct {
	Rules []Rule
}

// AnyOf combines rules with short-circuit OR.
func AnyOf(rules ...Rule) *AnyOfRule {
	return &AnyOfRule{Rules: rules}
}

// Authenticate implements Rule.
func (r *AnyOfRule) Authenticate(req Request) bool {
	for _, rule := range r.Rules {
		if Authenticate(rule, req) {
			return true
		}
	}
	return false
}

// AllOfRule passes when every sub-rule passes. Evaluation short-circuits on
// the first failure. An empty rule list passes.
type AllOfRule struct {
	Rules []Rule
}

// AllOf combines rules with short-circuit AND.
func AllOf(rules ...Rule) *AllOfRule {
	return &AllOfRule{Rules: rules}
}

// Authenticate implements Rule.
func (r *AllOfRule) Authenticate(req Request) bool {
	for _, rule := range r.Rules {
		if !Authenticate(rule, req) {
			return false
		}
	}
	return true
}
