// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders
package encode

import "errors"

// ErrClosed is returned when writing to a closed encoder
var ErrClosed = errors.New("encode: encoder closed")

// Encoder encodes PCM bytes into a file format
type Encoder interface {
	// Write encodes whole samples from p and reports the bytes consumed
	Write(p []byte) (int, error)

	// Close finalizes the output; the underlying writer stays open
	Close() error
}
