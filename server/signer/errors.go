package signer

import "fmt"

// KeyLoadError is returned when the signing key cannot be read or parsed.
type KeyLoadError struct {
	Path string
	Err  error
}

func (e *KeyLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unable to load signing key: %v", e.Err)
	}
	return fmt.Sprintf("unable to load signing key %s: %v", e.Path, e.Err)
}

func (e *KeyLoadError) Unwrap() error { return e.Err }

// SigningError is returned when the signing backend fails to produce a
// signature.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("unable to sign policy: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// ValidationError is returned when a request would produce a URL CloudFront
// must reject, such as one without a key pair id or one that has already
// expired.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid signing request: " + e.Reason
}
