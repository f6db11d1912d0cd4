//go:build nouac

package acquisition

import "errors"

var errUACDisabled = errors.New("USB audio capture disabled in this build")

type USBDeviceInfo struct {
	Bus      int    `json:"bus"`
	Address  int    `json:"address"`
	VID      string `json:"vid"`
	PID      string `json:"pid"`
	Product  string `json:"product"`
	Serial   string `json:"serial,omitempty"`
	HasAudio bool   `json:"has_audio"`
	HasCDC   bool   `json:"has_cdc"`
}

func EnumerateUSB(vidHex, pidHex string) ([]USBDeviceInfo, error) {
	_ = vidHex
	_ = pidHex
	return []USBDeviceInfo{}, nil
}

func ResolveUSBIdentityFromPort(target DeviceTarget) (USBIdentity, error) {
	_ = target
	return USBIdentity{}, errUACDisabled
}

type AudioSource struct {
	target DeviceTarget
}

func NewAudioSource(cfg AudioConfig, target DeviceTarget, keyword string) *AudioSource {
	_ = cfg
	_ = keyword
	return &AudioSource{target: target}
}

func (s *AudioSource) Name() string { return "audio" }

func (s *AudioSource) Info() SourceInfo {
	return SourceInfo{Name: "audio", Kind: "audio", Port: s.target.PortName}
}

func (s *AudioSource) Open() error {
	return errUACDisabled
}

func (s *AudioSource) ReadChunk(p []byte) (int, error) {
	_ = p
	return 0, errUACDisabled
}

func (s *AudioSource) Close() error {
	return nil
}
