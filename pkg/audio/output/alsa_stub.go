//go:build !alsa

// ABOUTME: Stub alsa backend when built without the alsa tag
// ABOUTME: Build with -tags alsa to enable the ALSA output
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

func openALSA(format audio.Format, cfg DeviceConfig) (Device, error) {
	return nil, fmt.Errorf("%w: alsa (build with -tags alsa)", ErrBackendDisabled)
}
