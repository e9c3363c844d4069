// Package coerce implements the small declared-type system shared by the
// execution engine and the gateway for task input/output validation.
//
// Declared types form a closed enum (string, integer, number, boolean, array,
// object, any) resolved once at task registration time via ParseType. Coerce
// converts a runtime value into the declared type or fails with an error that
// names the offending value and the target type.
//
// A Coercer wraps Coerce with a bounded, least-recently-used result cache
// keyed by (value, type). Both successful and failed coercions are cached so
// repeated validation of the same literal is O(1) after the first attempt.
// Hit and miss counters are exposed for observability.
package coerce
