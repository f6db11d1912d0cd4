//go:build !nouac && !linux

package acquisition

import "fmt"

// ResolveUSBIdentityFromPort has no port-to-device link to follow outside
// Linux, so it looks the configured VID/PID up on the bus.
func ResolveUSBIdentityFromPort(target DeviceTarget) (USBIdentity, error) {
	if target.VID == "" || target.PID == "" {
		return USBIdentity{}, fmt.Errorf("port %s: vid and pid are required to identify the device", target.PortName)
	}
	return findUSBByID(target.VID, target.PID, target.Serial)
}
