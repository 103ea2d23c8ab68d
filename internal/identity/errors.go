// Identity and journey operations fail in a small, closed set of ways, and
// callers branch on which way.  Rather than matching on error message text,
// every failure carries an explicit Kind that handlers switch over
// exhaustively when mapping to HTTP responses.
package identity

import "errors"

// Kind enumerates the identity error taxonomy.
type Kind int

const (
	// KindDeviceUnidentified: no device identifier was found in any request
	// source.  Client-fixable; never retried server-side.
	KindDeviceUnidentified Kind = iota + 1
	// KindKeyNotFound: a backup key that was never issued (or whose journey
	// is gone) was presented for redemption.
	KindKeyNotFound
	// KindJourneyNotFound: a device link or key points at a journey that no
	// longer exists.  Indicates a missed cleanup step server-side, not a
	// user error.
	KindJourneyNotFound
	// KindTokenNotFound: unknown migration token.
	KindTokenNotFound
	// KindTokenAlreadyUsed: the migration token was already redeemed once.
	KindTokenAlreadyUsed
	// KindTokenExpired: the migration token's validity window has passed.
	KindTokenExpired
	// KindTokenInvalidFormat: the presented value cannot be a migration
	// token at all (wrong length or alphabet).
	KindTokenInvalidFormat
	// KindStoreBusy: the storage layer is temporarily out of resources.
	// Retriable later; distinct from a generic server error.
	KindStoreBusy
)

// Error is the tagged error type used across identity and journey code.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// E constructs a tagged Error.
func E(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// KindOf extracts the Kind from an error chain, or 0 when the error does not
// originate from this package.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}
