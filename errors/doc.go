// Package errors provides standardized error handling patterns for phonebook
// components.
//
// # Error Classification
//
// Errors are classified into five classes matching the behavior the API
// surfaces to clients:
//
//   - Validation: input violates a required-field or uniqueness constraint,
//     or a credential mismatch. Carries the offending input via InvalidArgs.
//   - Authentication: missing or invalid identity for an operation that
//     requires one. Never carries input.
//   - NotFound: a referenced record does not exist.
//   - Transient: temporary failures (storage unavailable, context timeouts).
//   - Fatal: unrecoverable failures (bad configuration).
//
// The classification integrates with Go's standard error handling, supporting
// errors.Is(), errors.As(), and wrapping chains.
//
// # Error Wrapping Pattern
//
// All wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Classification-aware wrappers set the class while preserving the chain:
//
//	errors.WrapValidation(err, "Store", "InsertPerson", "insert")
//	errors.WrapAuthentication(err, "TokenService", "Verify", "parse")
//	errors.WrapNotFound(err, "Resolver", "EditNumber", "lookup")
//
// Validation errors that must echo the caller's input back use Validation:
//
//	errors.Validation(err, "Resolver", "AddPerson", map[string]any{
//	    "name": name,
//	})
//
// Check classification at the API boundary to choose an error code:
//
//	switch errors.Classify(err) {
//	case errors.ErrorValidation:
//	    // BAD_USER_INPUT
//	case errors.ErrorAuthentication:
//	    // UNAUTHENTICATED
//	}
package errors
