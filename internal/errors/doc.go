// Package errors defines the application error taxonomy and its HTTP mapping.
//
// Domain failures are typed (SchemaError, ParseError, InsufficientDataError,
// PersistenceError) so callers can branch with errors.As; ErrorHandler turns
// any of them into an RFC 7807 problem response.
package errors
