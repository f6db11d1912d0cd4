package acquisition

// DeviceTarget identifies the device a source should attach to. Any field
// may be empty.
type DeviceTarget struct {
	PortName string
	VID      string
	PID      string
	Serial   string
}

type USBIdentity struct {
	VID     string
	PID     string
	Serial  string
	Bus     int
	Address int
}

// SourceInfo describes an opened source for status reporting and the
// device table.
type SourceInfo struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Port   string `json:"port,omitempty"`
	VID    string `json:"vid,omitempty"`
	PID    string `json:"pid,omitempty"`
	Serial string `json:"serial,omitempty"`
}
