// ABOUTME: Audio encoder package for writing PCM to files
// ABOUTME: Provides the Encoder interface and a WAV implementation
// Package encode writes PCM streams to container formats.
//
// Supports: WAV (8-bit unsigned and 16-bit signed)
//
// Encoders accept PCM bytes in the format they were created with and
// convert other encodings to 16-bit.
//
// Example:
//
//	enc, err := encode.NewWAV(f, format)
//	n, err := enc.Write(pcm)
//	err = enc.Close()
package encode
