// Package auth provides stateless authentication rules and request-shape
// validators for inbound webhook requests. Rules are pure predicates over a
// request view; they hold configured credentials but no per-request state and
// are safe for concurrent use. Validators run independently of authentication
// and collect every violation rather than stopping at the first.
package auth
