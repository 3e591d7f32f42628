package common

import "fmt"

var ErrUnsupported = fmt.Errorf("unsupported operation")
var ErrNotFound = fmt.Errorf("not found")

// Decoder failures. Callers match them with errors.Is.
var ErrMalformedInput = fmt.Errorf("malformed input")
var ErrInvalidSignature = fmt.Errorf("invalid signature")
var ErrUnsupportedEncoding = fmt.Errorf("unsupported encoding")

// Short reports ErrMalformedInput when b is shorter than want.
func Short(what string, b []byte, want int) error {
	if len(b) < want {
		return fmt.Errorf("%s: need %d bytes, got %d: %w", what, want, len(b), ErrMalformedInput)
	}
	return nil
}
