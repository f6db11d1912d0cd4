//go:build !nouac && linux

package acquisition

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sysTTY = "/sys/class/tty"

// ResolveUSBIdentityFromPort follows the tty's sysfs link up to the USB
// device that owns it. Without a port the configured VID/PID are looked up
// on the bus instead.
func ResolveUSBIdentityFromPort(target DeviceTarget) (USBIdentity, error) {
	port := strings.TrimSpace(target.PortName)
	if port == "" {
		if target.VID != "" && target.PID != "" {
			return findUSBByID(target.VID, target.PID, target.Serial)
		}
		return USBIdentity{}, fmt.Errorf("no port and no vid/pid to identify the device")
	}

	dev, err := filepath.EvalSymlinks(filepath.Join(sysTTY, filepath.Base(port), "device"))
	if err != nil {
		return USBIdentity{}, fmt.Errorf("port %s is not a tty device: %w", port, err)
	}

	root := dev
	for range 10 {
		if _, err := os.Stat(filepath.Join(root, "idVendor")); err == nil {
			return identityFromSysfs(root)
		}
		parent := filepath.Dir(root)
		if parent == root {
			break
		}
		root = parent
	}
	return USBIdentity{}, fmt.Errorf("port %s is not behind a usb device", port)
}

func identityFromSysfs(dir string) (USBIdentity, error) {
	attr := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}

	id := USBIdentity{
		VID:    strings.ToUpper(attr("idVendor")),
		PID:    strings.ToUpper(attr("idProduct")),
		Serial: attr("serial"),
	}
	if id.VID == "" || id.PID == "" {
		return USBIdentity{}, fmt.Errorf("incomplete usb identity under %s", dir)
	}
	id.Bus, _ = strconv.Atoi(attr("busnum"))
	id.Address, _ = strconv.Atoi(attr("devnum"))
	return id, nil
}
