package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRequest struct {
	method  string
	path    string
	headers map[string]string
	body    []byte
}

func (r *fakeRequest) Method() string { return r.method }
func (r *fakeRequest) Path() string   { return r.path }
func (r *fakeRequest) Header(name string) string {
	return r.headers[textproto.CanonicalMIMEHeaderKey(name)]
}
func (r *fakeRequest) RawBody() []byte { return r.body }

func newFakeRequest(headers map[string]string, body string) *fakeRequest {
	canonical := make(map[string]string, len(headers))
	for k, v := range headers {
		canonical[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	return &fakeRequest{method: "POST", path: "/webhook", headers: canonical, body: []byte(body)}
}

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNilRulePasses(t *testing.T) {
	assert.True(t, Authenticate(nil, newFakeRequest(nil, "")))
}

func TestSignatureRule(t *testing.T) {
	body := `{"test":"payload"}`
	digest := signBody("webhook_secret", body)
	rule := Signature("X-Signature", "webhook_secret")

	req := newFakeRequest(map[string]string{"X-Signature": digest}, body)
	assert.True(t, rule.Authenticate(req))

	// Any single-character mutation of the digest must fail.
	for i := range digest {
		mutated := []byte(digest)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		req := newFakeRequest(map[string]string{"X-Signature": string(mutated)}, body)
		require.False(t, rule.Authenticate(req), "mutation at index %d accepted", i)
	}
}

func TestSignatureRulePrefixAndAlgorithm(t *testing.T) {
	body := `{"ok":true}`
	digest := signBody("s3cret", body)
	rule := Signature("X-Hub-Signature-256", "s3cret", WithPrefix("sha256="), WithAlgorithm(SHA256))

	req := newFakeRequest(map[string]string{"X-Hub-Signature-256": "sha256=" + digest}, body)
	assert.True(t, rule.Authenticate(req))

	// Without the prefix the value is rejected outright.
	req = newFakeRequest(map[string]string{"X-Hub-Signature-256": digest}, body)
	assert.False(t, rule.Authenticate(req))
}

func TestSignatureRuleMissingHeader(t *testing.T) {
	rule := Signature("X-Signature", "webhook_secret")
	assert.False(t, rule.Authenticate(newFakeRequest(nil, "{}")))
}

func TestBearerRule(t *testing.T) {
	rule := Bearer("tok-123")

	assert.True(t, rule.Authenticate(newFakeRequest(map[string]string{"Authorization": "Bearer tok-123"}, "")))
	assert.True(t, rule.Authenticate(newFakeRequest(map[string]string{"Authorization": "bearer tok-123"}, "")), "scheme match is case-insensitive")
	assert.False(t, rule.Authenticate(newFakeRequest(map[string]string{"Authorization": "Bearer tok-999"}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(map[string]string{"Authorization": "tok-123"}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(nil, "")))
}

func TestAPIKeyRule(t *testing.T) {
	rule := APIKey("X-API-Key", "key-abc")

	assert.True(t, rule.Authenticate(newFakeRequest(map[string]string{"X-API-Key": "key-abc"}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(map[string]string{"X-API-Key": "key-xyz"}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(nil, "")))
}

func TestBasicRule(t *testing.T) {
	rule := Basic("alice", "wonderland")
	encode := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	assert.True(t, rule.Authenticate(newFakeRequest(map[string]string{
		"Authorization": "Basic " + encode("alice:wonderland"),
	}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(map[string]string{
		"Authorization": "Basic " + encode("alice:hunter2"),
	}, "")))
	// Malformed payloads fail closed.
	assert.False(t, rule.Authenticate(newFakeRequest(map[string]string{
		"Authorization": "Basic " + encode("no-separator"),
	}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(map[string]string{
		"Authorization": "Basic not!base64!!",
	}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(nil, "")))
}

func TestCustomRuleRecoversFromPanic(t *testing.T) {
	rule := Custom(func(req Request) bool {
		panic("predicate blew up")
	})
	assert.False(t, rule.Authenticate(newFakeRequest(nil, "")))

	allowed := Custom(func(req Request) bool {
		return req.Header("X-Tenant") == "acme"
	})
	assert.True(t, allowed.Authenticate(newFakeRequest(map[string]string{"X-Tenant": "acme"}, "")))
}

// any_of(api_key, bearer) passes when either credential matches and fails
// only when both do.
func TestAnyOfCombinator(t *testing.T) {
	rule := AnyOf(
		APIKey("X-API-Key", "key-abc"),
		Bearer("tok-123"),
	)

	assert.True(t, rule.Authenticate(newFakeRequest(map[string]string{"X-API-Key": "key-abc"}, "")))
	assert.True(t, rule.Authenticate(newFakeRequest(map[string]string{"Authorization": "Bearer tok-123"}, "")))
	assert.True(t, rule.Authenticate(newFakeRequest(map[string]string{
		"X-API-Key":     "key-abc",
		"Authorization": "Bearer tok-123",
	}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(map[string]string{
		"X-API-Key":     "wrong",
		"Authorization": "Bearer wrong",
	}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(nil, "")))
}

func TestAllOfCombinator(t *testing.T) {
	rule := AllOf(
		APIKey("X-API-Key", "key-abc"),
		Bearer("tok-123"),
	)

	assert.True(t, rule.Authenticate(newFakeRequest(map[string]string{
		"X-API-Key":     "key-abc",
		"Authorization": "Bearer tok-123",
	}, "")))
	assert.False(t, rule.Authenticate(newFakeRequest(map[string]string{"X-API-Key": "key-abc"}, "")))
	assert.True(t, AllOf().Authenticate(newFakeRequest(nil, "")))
}

func TestValidateCollectsAllViolations(t *testing.T) {
	validators := []Validator{
		RequiredHeader("X-Request-ID"),
		RequiredHeader("X-Env", "production"),
		ContentType("application/json"),
	}

	req := newFakeRequest(map[string]string{
		"X-Env":        "staging",
		"Content-Type": "text/plain",
	}, "")
	violations := Validate(validators, req)
	require.Len(t, violations, 3)
	assert.Contains(t, violations[0], "X-Request-ID")
	assert.Contains(t, violations[1], "X-Env")
	assert.Contains(t, violations[2], "text/plain")

	req = newFakeRequest(map[string]string{
		"X-Request-Id": "r-1",
		"X-Env":        "production",
		"Content-Type": "application/json; charset=utf-8",
	}, "")
	assert.Empty(t, Validate(validators, req))
}

func TestContentTypeIgnoresParameters(t *testing.T) {
	v := ContentType("application/json", "application/x-www-form-urlencoded")

	assert.NoError(t, v.Validate(newFakeRequest(map[string]string{"Content-Type": "application/json; charset=utf-8"}, "")))
	assert.NoError(t, v.Validate(newFakeRequest(map[string]string{"Content-Type": "APPLICATION/JSON"}, "")))
	assert.Error(t, v.Validate(newFakeRequest(map[string]string{"Content-Type": "text/html"}, "")))
	assert.Error(t, v.Validate(newFakeRequest(nil, "")))
}
