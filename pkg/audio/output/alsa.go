//go:build alsa

// ABOUTME: ALSA output backend calling libasound through cgo
// ABOUTME: Interleaved S16LE writes with occupancy from snd_pcm_delay
package output

/*
#cgo LDFLAGS: -lasound
#include <alsa/asoundlib.h>
#include <stdlib.h>

static int audout_open(snd_pcm_t **pcm, const char *name) {
    return snd_pcm_open(pcm, name, SND_PCM_STREAM_PLAYBACK, 0);
}

static int audout_setup(snd_pcm_t *pcm, unsigned int channels, unsigned int rate, unsigned int latency_us) {
    return snd_pcm_set_params(pcm, SND_PCM_FORMAT_S16_LE, SND_PCM_ACCESS_RW_INTERLEAVED,
                              channels, rate, 1, latency_us);
}
*/
import "C"

import (
	"fmt"
	"log"
	"unsafe"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

// alsaPCM is the PCM opened for playback
const alsaPCM = "default"

// alsaDevice plays S16LE through the default ALSA PCM, converting other encodings
type alsaDevice struct {
	format  audio.Format
	latency uint
	pcm     *C.snd_pcm_t
	block   int
	bufSize int
	scratch []byte
}

func openALSA(format audio.Format, cfg DeviceConfig) (Device, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	d := &alsaDevice{
		format:  format,
		latency: uint(cfg.Latency.Microseconds()),
	}
	if err := d.open(); err != nil {
		return nil, err
	}

	log.Printf("ALSA output opened: %s, block %d bytes, queue %d bytes", format, d.block, d.bufSize)
	return d, nil
}

func alsaError(code C.int) string {
	return C.GoString(C.snd_strerror(code))
}

// open configures the PCM and reads back the period and buffer it settled on
func (d *alsaDevice) open() error {
	name := C.CString(alsaPCM)
	defer C.free(unsafe.Pointer(name))

	var pcm *C.snd_pcm_t
	if r := C.audout_open(&pcm, name); r < 0 {
		return fmt.Errorf("%w: alsa %s: %s", ErrDeviceOpen, alsaPCM, alsaError(r))
	}

	if r := C.audout_setup(pcm, C.uint(d.format.Channels), C.uint(d.format.SampleRate), C.uint(d.latency)); r < 0 {
		C.snd_pcm_close(pcm)
		return fmt.Errorf("%w: alsa %s: %s", ErrUnsupportedFormat, d.format, alsaError(r))
	}

	var bufFrames, periodFrames C.snd_pcm_uframes_t
	if r := C.snd_pcm_get_params(pcm, &bufFrames, &periodFrames); r < 0 {
		C.snd_pcm_close(pcm)
		return fmt.Errorf("%w: alsa params: %s", ErrDeviceOpen, alsaError(r))
	}

	d.pcm = pcm
	d.block = int(periodFrames) * d.format.FrameSize()
	d.bufSize = int(bufFrames) * d.format.FrameSize()
	return nil
}

func (d *alsaDevice) Write(p []byte) (int, error) {
	if d.pcm == nil {
		return 0, ErrDeviceClosed
	}

	out := p
	if d.format.Encoding != audio.S16LE {
		d.scratch = audio.Convert(d.scratch, p, d.format.Encoding, audio.S16LE)
		out = d.scratch
	}

	frame := d.format.Channels * 2
	for len(out) >= frame {
		n := C.snd_pcm_writei(d.pcm, unsafe.Pointer(&out[0]), C.snd_pcm_uframes_t(len(out)/frame))
		if n < 0 {
			// Underruns and suspends are recovered in place; anything else fails the block
			if r := C.snd_pcm_recover(d.pcm, C.int(n), 1); r < 0 {
				return 0, fmt.Errorf("alsa write: %s", alsaError(r))
			}
			continue
		}
		out = out[int(n)*frame:]
	}
	return len(p), nil
}

func (d *alsaDevice) BlockSize() int  { return d.block }
func (d *alsaDevice) BufferSize() int { return d.bufSize }

// Delay reports the frames queued ahead of the DAC in stream bytes
func (d *alsaDevice) Delay() (int, error) {
	if d.pcm == nil {
		return 0, ErrDeviceClosed
	}

	var frames C.snd_pcm_sframes_t
	if r := C.snd_pcm_delay(d.pcm, &frames); r < 0 {
		return 0, fmt.Errorf("snd_pcm_delay: %s", alsaError(r))
	}
	if frames < 0 {
		frames = 0
	}
	return int(frames) * d.format.FrameSize(), nil
}

// Sync plays out the queue and leaves the PCM ready for more writes
func (d *alsaDevice) Sync() error {
	if d.pcm == nil {
		return ErrDeviceClosed
	}
	if r := C.snd_pcm_drain(d.pcm); r < 0 {
		return fmt.Errorf("snd_pcm_drain: %s", alsaError(r))
	}
	return d.prepare()
}

func (d *alsaDevice) Drop() error {
	if d.pcm == nil {
		return ErrDeviceClosed
	}
	if r := C.snd_pcm_drop(d.pcm); r < 0 {
		return fmt.Errorf("snd_pcm_drop: %s", alsaError(r))
	}
	return d.prepare()
}

func (d *alsaDevice) prepare() error {
	if r := C.snd_pcm_prepare(d.pcm); r < 0 {
		return fmt.Errorf("snd_pcm_prepare: %s", alsaError(r))
	}
	return nil
}

func (d *alsaDevice) Reopen() error {
	d.Close()
	return d.open()
}

func (d *alsaDevice) Close() error {
	if d.pcm == nil {
		return nil
	}
	r := C.snd_pcm_close(d.pcm)
	d.pcm = nil
	if r < 0 {
		return fmt.Errorf("snd_pcm_close: %s", alsaError(r))
	}
	return nil
}
