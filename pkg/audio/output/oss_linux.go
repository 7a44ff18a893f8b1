//go:build linux

// ABOUTME: OSS output backend writing to /dev/dsp through ioctl and poll
// ABOUTME: Fragment sizing, occupancy queries and drain/reset controls
package output

import (
	"errors"
	"fmt"
	"log"
	"math/bits"
	"time"
	"unsafe"

	"github.com/Resonate-Protocol/audout/pkg/audio"
	"golang.org/x/sys/unix"
)

// OSS ioctl requests
const (
	sndctlDSPReset       = 0x5000
	sndctlDSPSync        = 0x5001
	sndctlDSPSpeed       = 0xc0045002
	sndctlDSPGetBlkSize  = 0xc0045004
	sndctlDSPSetFmt      = 0xc0045005
	sndctlDSPChannels    = 0xc0045006
	sndctlDSPPost        = 0x5008
	sndctlDSPSetFragment = 0xc004500a
	sndctlDSPGetOSpace   = 0x8010500c
)

// OSS sample formats
const (
	afmtU8    = 0x00000008
	afmtS16LE = 0x00000010
	afmtS16BE = 0x00000020
	afmtS8    = 0x00000040
	afmtU16LE = 0x00000080
	afmtU16BE = 0x00000100
)

// ossFragments is the number of fragments requested from the driver
const ossFragments = 32

var ossFormats = map[audio.Encoding]int32{
	audio.U8:    afmtU8,
	audio.S8:    afmtS8,
	audio.S16LE: afmtS16LE,
	audio.S16BE: afmtS16BE,
	audio.U16LE: afmtU16LE,
	audio.U16BE: afmtU16BE,
}

// audioBufInfo mirrors struct audio_buf_info
type audioBufInfo struct {
	Fragments  int32
	FragsTotal int32
	FragSize   int32
	Bytes      int32
}

// ossDevice is an open /dev/dsp handle configured for one stream format
type ossDevice struct {
	path    string
	format  audio.Format
	devEnc  audio.Encoding
	fd      int
	block   int
	bufSize int // device bytes
	scratch []byte
}

func openOSS(format audio.Format, cfg DeviceConfig) (Device, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	path := cfg.Path
	if path == "" {
		path = "/dev/dsp"
	}

	d := &ossDevice{path: path, format: format, fd: -1}
	if err := d.open(); err != nil {
		return nil, err
	}

	log.Printf("OSS output opened: %s on %s, block %d bytes, queue %d bytes", format, path, d.block, d.BufferSize())
	return d, nil
}

// errFormatChanged makes open retry with the encoding the driver picked
var errFormatChanged = errors.New("oss: driver changed the sample format")

// open opens the device node and negotiates fragments, format, channels and
// rate. Fragments are sized for the device encoding, so when the driver picks
// another encoding the node is opened again with that encoding.
func (d *ossDevice) open() error {
	if d.devEnc == audio.EncodingUnknown {
		d.devEnc = d.format.Encoding
	}

	for attempt := 0; ; attempt++ {
		fd, err := unix.Open(d.path, unix.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDeviceOpen, d.path, err)
		}
		d.fd = fd

		err = d.configure()
		if err == nil {
			return nil
		}
		unix.Close(fd)
		d.fd = -1

		if !errors.Is(err, errFormatChanged) {
			return err
		}
		if attempt > 0 {
			return fmt.Errorf("%w: %s keeps changing the sample format", ErrUnsupportedFormat, d.path)
		}
	}
}

// ossFragment returns the fragment size and the driver queue size, both in
// device bytes, for a stream played as devEnc
func ossFragment(format audio.Format, devEnc audio.Encoding) (frag, bufSize int) {
	format.Encoding = devEnc
	frag = fragmentSize(format.BytesPerSecond())
	return frag, frag * (ossFragments + 1)
}

func (d *ossDevice) configure() error {
	// Fragments of just under 1/25 s, ossFragments of them
	frag, bufSize := ossFragment(d.format, d.devEnc)
	arg := int32(ossFragments<<16 | bits.TrailingZeros(uint(frag)))
	if err := ioctlInt(d.fd, sndctlDSPSetFragment, &arg); err != nil {
		log.Printf("Warning: SNDCTL_DSP_SETFRAGMENT failed on %s: %v", d.path, err)
	}
	d.bufSize = bufSize

	afmt := ossFormats[d.devEnc]
	if err := ioctlInt(d.fd, sndctlDSPSetFmt, &afmt); err != nil {
		return fmt.Errorf("%w: set format: %v", ErrDeviceOpen, err)
	}
	got := audio.EncodingUnknown
	for enc, f := range ossFormats {
		if f == afmt {
			got = enc
		}
	}
	if got == audio.EncodingUnknown {
		return fmt.Errorf("%w: driver chose format %#x", ErrUnsupportedFormat, afmt)
	}
	if got != d.devEnc {
		log.Printf("Device does not support %s, converting to %s", d.devEnc, got)
		d.devEnc = got
		return errFormatChanged
	}

	channels := int32(d.format.Channels)
	if err := ioctlInt(d.fd, sndctlDSPChannels, &channels); err != nil {
		return fmt.Errorf("%w: set channels: %v", ErrDeviceOpen, err)
	}
	if int(channels) != d.format.Channels {
		return fmt.Errorf("%w: %d channels (driver offers %d)", ErrUnsupportedFormat, d.format.Channels, channels)
	}

	rate := int32(d.format.SampleRate)
	if err := ioctlInt(d.fd, sndctlDSPSpeed, &rate); err != nil {
		return fmt.Errorf("%w: set rate: %v", ErrDeviceOpen, err)
	}
	if int(rate) != d.format.SampleRate {
		log.Printf("Warning: device plays at %dHz instead of %dHz", rate, d.format.SampleRate)
	}

	var blk int32
	if err := ioctlInt(d.fd, sndctlDSPGetBlkSize, &blk); err != nil || blk <= 0 {
		blk = int32(frag)
	}
	d.block = d.toInput(int(blk))
	return nil
}

// toInput converts device bytes to stream bytes
func (d *ossDevice) toInput(n int) int {
	return n * d.format.Encoding.BytesPerSample() / d.devEnc.BytesPerSample()
}

func (d *ossDevice) Write(p []byte) (int, error) {
	out := p
	if d.devEnc != d.format.Encoding {
		d.scratch = audio.Convert(d.scratch, p, d.format.Encoding, d.devEnc)
		out = d.scratch
	}

	for len(out) > 0 {
		n, err := unix.Write(d.fd, out)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("write %s: %w", d.path, err)
		}
		out = out[n:]
	}
	return len(p), nil
}

func (d *ossDevice) BlockSize() int  { return d.block }
func (d *ossDevice) BufferSize() int { return d.toInput(d.bufSize) }

// Delay reports the bytes queued in the driver
func (d *ossDevice) Delay() (int, error) {
	var info audioBufInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), sndctlDSPGetOSpace, uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return 0, fmt.Errorf("SNDCTL_DSP_GETOSPACE: %w", errno)
	}
	used := int(info.FragsTotal*info.FragSize - info.Bytes)
	if used < 0 {
		used = 0
	}
	return d.toInput(used), nil
}

// WaitWritable polls the device for output readiness
func (d *ossDevice) WaitWritable(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if errors.Is(err, unix.EINTR) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0 && fds[0].Revents&unix.POLLOUT != 0, nil
}

func (d *ossDevice) Post() error { return ioctlNone(d.fd, sndctlDSPPost) }
func (d *ossDevice) Sync() error { return ioctlNone(d.fd, sndctlDSPSync) }
func (d *ossDevice) Drop() error { return ioctlNone(d.fd, sndctlDSPReset) }

// Reopen closes and reopens the node with the same parameters
func (d *ossDevice) Reopen() error {
	if d.fd >= 0 {
		unix.Close(d.fd)
		d.fd = -1
	}
	return d.open()
}

func (d *ossDevice) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// ioctlInt issues a read/write ioctl whose argument is an int
func ioctlInt(fd int, req uint, v *int32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(v)))
	if errno != 0 {
		return errno
	}
	return nil
}

// ioctlNone issues an ioctl without an argument
func ioctlNone(fd int, req uint) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
