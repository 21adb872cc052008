package tokens

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is wrapped by every verification failure. Callers
	// outside this package should only ever test for this sentinel.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrMissing is returned when no token was presented
	ErrMissing = fmt.Errorf("%w: missing token", ErrUnauthenticated)

	// ErrMalformed is returned when the token cannot be parsed
	ErrMalformed = fmt.Errorf("%w: malformed token", ErrUnauthenticated)

	// ErrInvalidSignature is returned when the signature, algorithm or issuer does not match
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrUnauthenticated)

	// ErrExpired is returned when the token is outside its validity window
	ErrExpired = fmt.Errorf("%w: token expired", ErrUnauthenticated)
)

var (
	// ErrInvalidCredentials is the single, generic login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrCredentialStoreUnavailable is returned when credentials could not be
	// checked at all. It must never be treated as a successful login.
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")
)

var (
	// ErrUnsupportedAlgorithm is returned for anything other than HS256/HS384/HS512
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// ErrWeakSecret is returned when the signing key is shorter than the
	// algorithm minimum or too repetitive to have come from a random source
	ErrWeakSecret = errors.New("signing secret too weak")
)
