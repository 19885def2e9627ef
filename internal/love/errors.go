package love

import "github.com/rotisserie/eris"

var (
	// ErrValidation indicates malformed or missing caller input.
	ErrValidation = eris.New("invalid request")
	// ErrAuthentication indicates the payment signature did not match.
	ErrAuthentication = eris.New("payment verification failed")
	// ErrNotFound indicates no live page exists for the slug.
	ErrNotFound = eris.New("love page not found")
	// ErrPersistence indicates the page store failed after payment was verified.
	ErrPersistence = eris.New("page persistence failed")
	// ErrSlugTaken indicates an insert lost the race for a slug.
	ErrSlugTaken = eris.New("slug already taken")
)
