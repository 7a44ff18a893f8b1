// ABOUTME: Software volume applied to PCM blocks on their way to the device
// ABOUTME: Works in place on any supported sample encoding
package output

import "github.com/Resonate-Protocol/audout/pkg/audio"

// applyVolume scales every whole sample in buf in place with clipping protection
func applyVolume(buf []byte, enc audio.Encoding, volume int, muted bool) {
	multiplier := getVolumeMultiplier(volume, muted)
	if multiplier == 1.0 {
		return
	}

	size := enc.BytesPerSample()
	if size == 0 {
		return
	}

	for i := 0; i+size <= len(buf); i += size {
		sample := audio.SampleAt(enc, buf[i:])
		audio.PutSample(enc, buf[i:], int32(float64(sample)*multiplier))
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

// clampVolume limits a volume to 0-100
func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}
