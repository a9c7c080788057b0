// Package phoenix is the HTTP client for the Phoenix users API.
//
// Every operation runs the same pipeline: build the request, perform one
// attempt, and either retry a transport failure (no response at all) after
// an exponential backoff, or hand the response to a pure classification step
// that yields the decoded envelope or a classified *Error.
//
// # Retry behavior
//
// Only transport failures are retried: dial and DNS errors, and attempts
// that hit Config.Timeout before a response arrived. The delay before retry
// n (0-based) is Config.BaseBackoff * 2^n, so 100ms, 200ms, 400ms with the
// defaults. Any HTTP response ends the loop; 5xx responses are retried only
// when Config.RetryServerErrors is set.
//
// # Errors
//
// Failures are reported as *Error with a closed Kind:
//
//   - KindConnection: retries exhausted, or an unexpected status, or an
//     undecodable 2xx body.
//   - KindNotFound: the API answered 404.
//   - KindValidation: the API answered 422; Fields holds field -> messages.
//   - KindProtocol: a 2xx envelope without "data" or with the wrong shape.
//
// Callers switch on Kind, or use errors.Is with ErrConnection, ErrNotFound,
// ErrValidation and ErrProtocol. A protocol error also matches ErrConnection.
// A malformed date inside a user object surfaces as *user.MalformedDateError
// and is not wrapped into a Kind.
//
// The Client keeps no state between calls and is safe for concurrent use.
package phoenix
