// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Encoding, Format and sample conversion functions
// Package audio provides the PCM types shared by the output pipeline and its producers.
//
// This package defines:
//   - Encoding: the byte layout of a sample (u8, s8, u16le, u16be, s16le, s16be)
//   - Format: encoding, sample rate and channel count of a raw PCM stream
//
// Format also carries the byte/millisecond arithmetic that drives buffer
// sizing and the output/written time counters.
//
// Example:
//
//	format := audio.Format{
//	    Encoding:   audio.S16LE,
//	    SampleRate: 44100,
//	    Channels:   2,
//	}
//
//	format.BytesPerSecond()  // 176400
//	format.BytesToMs(176400) // 1000
package audio
