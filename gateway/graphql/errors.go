package graphql

import (
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/c360/phonebook/errors"
)

// GraphQL error codes surfaced in error extensions
const (
	codeBadUserInput  = "BAD_USER_INPUT"
	codeUnauthorized  = "UNAUTHENTICATED"
	codeNotFound      = "NOT_FOUND"
	codeInternalError = "INTERNAL_SERVER_ERROR"
)

// classLabel returns the metric label for an error's classification
func classLabel(err error) string {
	return errors.Classify(err).String()
}

// shapeError converts a resolver error into a GraphQL error with a stable
// code. Internal failures never leak their raw error text to clients.
func shapeError(err error, operation string) *gqlerror.Error {
	if err == nil {
		return nil
	}

	switch errors.Classify(err) {
	case errors.ErrorValidation:
		gqlErr := &gqlerror.Error{
			Message: err.Error(),
			Extensions: map[string]interface{}{
				"code":      codeBadUserInput,
				"operation": operation,
			},
		}
		if args := errors.InvalidArgs(err); args != nil {
			gqlErr.Extensions["invalidArgs"] = args
		}
		return gqlErr

	case errors.ErrorAuthentication:
		return &gqlerror.Error{
			Message: "not authenticated",
			Extensions: map[string]interface{}{
				"code":      codeUnauthorized,
				"operation": operation,
			},
		}

	case errors.ErrorNotFound:
		return &gqlerror.Error{
			Message: err.Error(),
			Extensions: map[string]interface{}{
				"code":      codeNotFound,
				"operation": operation,
			},
		}

	default:
		return &gqlerror.Error{
			Message: "Internal server error",
			Extensions: map[string]interface{}{
				"code":      codeInternalError,
				"operation": operation,
			},
		}
	}
}
