// ABOUTME: Audio decoder package for feeding the output controller
// ABOUTME: Provides Decoder interface and implementations for WAV, MP3, FLAC and raw PCM
// Package decode turns audio files into raw PCM byte streams.
//
// Supports: WAV (8 and 16-bit), MP3, FLAC, headerless PCM
//
// All decoders implement the Decoder interface: Format reports the PCM
// layout, Read behaves like io.Reader, and SeekMs takes milliseconds.
//
// Example:
//
//	dec, err := decode.Open("track.flac", audio.Format{})
//	defer dec.Close()
//	err = ctrl.Open(dec.Format())
//	n, err := dec.Read(buf)
package decode
