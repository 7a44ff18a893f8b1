//go:build !linux

// ABOUTME: Stub oss backend for platforms without /dev/dsp
// ABOUTME: Opening always fails with ErrBackendDisabled
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/audout/pkg/audio"
)

func openOSS(format audio.Format, cfg DeviceConfig) (Device, error) {
	return nil, fmt.Errorf("%w: oss requires linux", ErrBackendDisabled)
}
