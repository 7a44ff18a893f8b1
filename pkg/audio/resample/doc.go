// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates and
// handles both upsampling and downsampling. Reader wraps a PCM stream so a
// player can feed one output at a fixed rate.
//
// Example:
//
//	rd, err := resample.NewReader(dec, dec.Format(), 48000)
//	n, err := rd.Read(buf)
package resample
