//go:build !nouac

package acquisition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// pickCaptureDevice chooses a PortAudio input. A device whose name contains
// the keyword wins; otherwise the USB identity of the target narrows the
// choice, falling back to the default input.
func pickCaptureDevice(keyword string, target DeviceTarget) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, errors.New("no audio devices from PortAudio")
	}

	normalize := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	keyword = normalize(keyword)

	var hints []string
	if target.PortName != "" {
		if id, idErr := ResolveUSBIdentityFromPort(target); idErr == nil {
			hints = append(hints, normalize(id.VID), normalize(id.PID))
		}
	}
	if target.VID != "" {
		hints = append(hints, normalize(target.VID))
	}

	var byKeyword, byHint *portaudio.DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		name := normalize(d.Name)
		if keyword != "" && byKeyword == nil && strings.Contains(name, keyword) {
			byKeyword = d
		}
		for _, h := range hints {
			if h != "" && byHint == nil && strings.Contains(name, h) {
				byHint = d
			}
		}
	}

	switch {
	case byKeyword != nil:
		return byKeyword, nil
	case keyword != "":
		return nil, fmt.Errorf("cannot find capture device matching %q (port=%s vid=%s pid=%s)", keyword, target.PortName, target.VID, target.PID)
	case byHint != nil:
		return byHint, nil
	}
	return portaudio.DefaultInputDevice()
}
