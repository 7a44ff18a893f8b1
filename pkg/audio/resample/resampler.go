// ABOUTME: Streaming linear resampler for converting audio sample rates
// ABOUTME: Carries the last input frame between chunks so the output has no seams
package resample

import (
	"errors"
	"io"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

// ErrInvalidRate is returned for non-positive sample rates
var ErrInvalidRate = errors.New("resample: invalid sample rate")

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // next output position in input frames, relative to prev
	prev       []int32 // last frame of the previous chunk
	havePrev   bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		prev:       make([]int32, channels),
	}
}

// Reset forgets the carried frame, for use after a seek
func (r *Resampler) Reset() {
	r.position = 0
	r.havePrev = false
	clear(r.prev)
}

// frame returns sample ch of virtual frame i, where frame 0 is the carried
// frame when there is one
func (r *Resampler) frame(input []int32, i, ch int) int32 {
	if r.havePrev {
		if i == 0 {
			return r.prev[ch]
		}
		i--
	}
	return input[i*r.channels+ch]
}

// Resample converts interleaved input samples at inputRate into output at
// outputRate and returns the number of output samples written. All whole
// input frames are consumed; output must hold MaxOutputSamples(len(input)).
func (r *Resampler) Resample(input []int32, output []int32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}

	frames := inputFrames
	if r.havePrev {
		frames++
	}
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputIdx := int(r.position)

		// Interpolation needs the next frame too
		if inputIdx >= frames-1 {
			break
		}

		frac := r.position - float64(inputIdx)
		for ch := 0; ch < r.channels; ch++ {
			sample1 := r.frame(input, inputIdx, ch)
			sample2 := r.frame(input, inputIdx+1, ch)
			interpolated := float64(sample1)*(1.0-frac) + float64(sample2)*frac
			output[outIdx*r.channels+ch] = int32(interpolated)
		}

		outIdx++
		r.position += r.ratio
	}

	// The last input frame becomes frame 0 of the next chunk
	r.position -= float64(frames - 1)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.prev, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.havePrev = true

	return outIdx * r.channels
}

// MaxOutputSamples returns an output size that always fits one Resample call
func (r *Resampler) MaxOutputSamples(inputSamples int) int {
	inputFrames := inputSamples/r.channels + 1
	outputFrames := int(float64(inputFrames)/r.ratio) + 2
	return outputFrames * r.channels
}

// Reader resamples a PCM stream to a new sample rate, keeping its encoding
// and channel count
type Reader struct {
	src     io.Reader
	in      audio.Format
	out     audio.Format
	r       *Resampler
	inBuf   []byte
	inSamp  []int32
	outSamp []int32
	pending []byte
	partial int // bytes of an incomplete frame left at the start of inBuf
	eof     bool
}

const readerChunkFrames = 1024

// NewReader resamples src, which carries PCM in format, to outputRate
func NewReader(src io.Reader, format audio.Format, outputRate int) (*Reader, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if outputRate <= 0 {
		return nil, ErrInvalidRate
	}

	out := format
	out.SampleRate = outputRate
	r := New(format.SampleRate, outputRate, format.Channels)
	chunk := readerChunkFrames * format.Channels

	return &Reader{
		src:     src,
		in:      format,
		out:     out,
		r:       r,
		inBuf:   make([]byte, readerChunkFrames*format.FrameSize()),
		inSamp:  make([]int32, chunk),
		outSamp: make([]int32, r.MaxOutputSamples(chunk)),
	}, nil
}

// Format returns the format of the resampled stream
func (rd *Reader) Format() audio.Format {
	return rd.out
}

// Reset drops buffered audio and interpolation state after the source seeks
func (rd *Reader) Reset() {
	rd.r.Reset()
	rd.pending = nil
	rd.partial = 0
	rd.eof = false
}

func (rd *Reader) Read(p []byte) (int, error) {
	for len(rd.pending) == 0 {
		if rd.eof {
			return 0, io.EOF
		}
		if err := rd.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, rd.pending)
	rd.pending = rd.pending[n:]
	return n, nil
}

// fill reads one chunk from the source and resamples its whole frames
func (rd *Reader) fill() error {
	n, err := rd.src.Read(rd.inBuf[rd.partial:])
	n += rd.partial
	if err == io.EOF {
		rd.eof = true
	} else if err != nil {
		return err
	}

	frameSize := rd.in.FrameSize()
	whole := n - n%frameSize
	sampleSize := rd.in.Encoding.BytesPerSample()

	count := whole / sampleSize
	for i := 0; i < count; i++ {
		rd.inSamp[i] = audio.SampleAt(rd.in.Encoding, rd.inBuf[i*sampleSize:])
	}

	produced := rd.r.Resample(rd.inSamp[:count], rd.outSamp)
	out := make([]byte, produced*sampleSize)
	for i := 0; i < produced; i++ {
		audio.PutSample(rd.out.Encoding, out[i*sampleSize:], rd.outSamp[i])
	}
	rd.pending = out

	rd.partial = copy(rd.inBuf, rd.inBuf[whole:n])
	return nil
}
