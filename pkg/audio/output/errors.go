// ABOUTME: Sentinel errors for the output pipeline
// ABOUTME: Callers match these with errors.Is
package output

import "errors"

var (
	ErrZeroCapacity      = errors.New("ring buffer capacity must be positive")
	ErrInsufficientSpace = errors.New("not enough space in ring buffer")
	ErrInsufficientData  = errors.New("not enough data in ring buffer")

	ErrNotOpen        = errors.New("output not open")
	ErrBufferOverfill = errors.New("write exceeds free buffer space")

	ErrDeviceOpen        = errors.New("cannot open audio device")
	ErrDeviceClosed      = errors.New("audio device closed")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrUnknownBackend    = errors.New("unknown output backend")
	ErrBackendDisabled   = errors.New("output backend not available in this build")
	ErrInvalidConfig     = errors.New("invalid output configuration")
)
