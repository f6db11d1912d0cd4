//go:build !nouac

package acquisition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// USBDeviceInfo is one attached USB device as listed on the devices page.
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

// EnumerateUSB lists attached devices, optionally filtered by VID and PID.
// An empty filter matches every device.
func EnumerateUSB(vidHex, pidHex string) ([]USBDeviceInfo, error) {
	var vid, pid uint64
	var err error
	if strings.TrimSpace(vidHex) != "" {
		if vid, err = parseHexID(vidHex); err != nil {
			return nil, fmt.Errorf("invalid vid: %w", err)
		}
	}
	if strings.TrimSpace(pidHex) != "" {
		if pid, err = parseHexID(pidHex); err != nil {
			return nil, fmt.Errorf("invalid pid: %w", err)
		}
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	opened, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if vid != 0 && desc.Vendor != gousb.ID(vid) {
			return false
		}
		return pid == 0 || desc.Product == gousb.ID(pid)
	})
	// OpenDevices reports per-device open failures alongside the devices
	// it did open; only give up when nothing came back.
	if err != nil && len(opened) == 0 {
		return nil, err
	}

	devices := make([]USBDeviceInfo, 0, len(opened))
	for _, d := range opened {
		info := USBDeviceInfo{
			Bus:     int(d.Desc.Bus),
			Address: int(d.Desc.Address),
			VID:     fmt.Sprintf("%04X", uint16(d.Desc.Vendor)),
			PID:     fmt.Sprintf("%04X", uint16(d.Desc.Product)),
			Product: fmt.Sprintf("0x%04X", uint16(d.Desc.Product)),
		}
		info.HasAudio, info.HasCDC = interfaceClasses(d.Desc)
		if p, perr := d.Product(); perr == nil && strings.TrimSpace(p) != "" {
			info.Product = strings.TrimSpace(p)
		}
		if s, serr := d.SerialNumber(); serr == nil {
			info.Serial = strings.TrimSpace(s)
		}
		devices = append(devices, info)
		_ = d.Close()
	}

	return devices, nil
}

func interfaceClasses(desc *gousb.DeviceDesc) (audio, cdc bool) {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				switch alt.Class {
				case gousb.ClassAudio:
					audio = true
				case gousb.ClassComm, gousb.ClassData:
					cdc = true
				}
			}
		}
	}
	return audio, cdc
}

func parseHexID(s string) (uint64, error) {
	v := strings.TrimSpace(strings.ToLower(s))
	v = strings.TrimPrefix(v, "0x")
	if v == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseUint(v, 16, 16)
}

// findUSBByID returns the identity of the attached device with the given
// VID and PID. With serial set, only that unit matches.
func findUSBByID(vidHex, pidHex, serial string) (USBIdentity, error) {
	vid, err := parseHexID(vidHex)
	if err != nil {
		return USBIdentity{}, fmt.Errorf("invalid vid: %w", err)
	}
	pid, err := parseHexID(pidHex)
	if err != nil {
		return USBIdentity{}, fmt.Errorf("invalid pid: %w", err)
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	opened, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	defer func() {
		for _, d := range opened {
			_ = d.Close()
		}
	}()
	if err != nil && len(opened) == 0 {
		return USBIdentity{}, err
	}

	for _, d := range opened {
		sn, _ := d.SerialNumber()
		sn = strings.TrimSpace(sn)
		if serial != "" && sn != serial {
			continue
		}
		return USBIdentity{
			VID:     fmt.Sprintf("%04X", uint16(d.Desc.Vendor)),
			PID:     fmt.Sprintf("%04X", uint16(d.Desc.Product)),
			Serial:  sn,
			Bus:     d.Desc.Bus,
			Address: d.Desc.Address,
		}, nil
	}
	return USBIdentity{}, fmt.Errorf("no usb device %s:%s serial=%q", vidHex, pidHex, serial)
}
