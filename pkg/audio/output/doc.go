// ABOUTME: Audio output package for buffered PCM playback
// ABOUTME: Provides the Controller, its device writer and the device backends
// Package output plays raw PCM through a bounded ring buffer.
//
// A producer writes into a Controller without blocking; a device writer
// goroutine drains the ring into a Device in device-sized blocks. The
// controller handles prebuffering, pause, flush (seek) and close, and
// reports the output and written times in milliseconds.
//
// Backends: oss (linux), alsa (build tag alsa), oto, null, and wav, which
// renders to a file.
//
// Example:
//
//	ctrl, err := output.NewForBackend(output.DefaultConfig())
//	err = ctrl.Open(audio.Format{Encoding: audio.S16LE, SampleRate: 44100, Channels: 2})
//	for ctrl.FreeSpace() < len(chunk) {
//	    time.Sleep(10 * time.Millisecond)
//	}
//	_, err = ctrl.Write(chunk)
//	err = ctrl.Drain(ctx)
//	err = ctrl.Close()
package output
