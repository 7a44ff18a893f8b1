// ABOUTME: Sample level conversion between encodings
// ABOUTME: All samples are normalized to the signed 16-bit range while in flight
package audio

// SampleAt decodes the sample stored at the start of b.
// 8-bit samples are scaled up so every encoding shares the int16 range.
func SampleAt(enc Encoding, b []byte) int32 {
	switch enc {
	case U8:
		return (int32(b[0]) - 128) << 8
	case S8:
		return int32(int8(b[0])) << 8
	case S16LE:
		return int32(int16(uint16(b[0]) | uint16(b[1])<<8))
	case S16BE:
		return int32(int16(uint16(b[1]) | uint16(b[0])<<8))
	case U16LE:
		return int32(uint16(b[0])|uint16(b[1])<<8) - 32768
	case U16BE:
		return int32(uint16(b[1])|uint16(b[0])<<8) - 32768
	default:
		return 0
	}
}

// PutSample stores v at the start of b, clamping to the int16 range
func PutSample(enc Encoding, b []byte, v int32) {
	if v > MaxInt16 {
		v = MaxInt16
	} else if v < MinInt16 {
		v = MinInt16
	}

	switch enc {
	case U8:
		b[0] = byte((v >> 8) + 128)
	case S8:
		b[0] = byte(int8(v >> 8))
	case S16LE:
		b[0] = byte(v)
		b[1] = byte(v >> 8)
	case S16BE:
		b[0] = byte(v >> 8)
		b[1] = byte(v)
	case U16LE:
		u := uint16(v + 32768)
		b[0] = byte(u)
		b[1] = byte(u >> 8)
	case U16BE:
		u := uint16(v + 32768)
		b[0] = byte(u >> 8)
		b[1] = byte(u)
	}
}

// Convert re-encodes whole samples from src into dst and returns the filled
// part of dst. dst is grown when it is too small. A trailing partial sample
// in src is ignored.
func Convert(dst, src []byte, from, to Encoding) []byte {
	inSize := from.BytesPerSample()
	outSize := to.BytesPerSample()
	if inSize == 0 || outSize == 0 {
		return dst[:0]
	}

	count := len(src) / inSize
	need := count * outSize
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]

	if from == to {
		copy(dst, src[:need])
		return dst
	}

	for i := 0; i < count; i++ {
		PutSample(to, dst[i*outSize:], SampleAt(from, src[i*inSize:]))
	}
	return dst
}
