package usbtmc

import (
	"context"
	"time"

	"github.com/google/gousb"

	"github.com/roman-kulish/attenuator-bench/internal/instrument/scpi"
)

// Enumerate finds all connected devices exposing a USB-TMC interface
func Enumerate(ctx context.Context) ([]DeviceInfo, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var infos []DeviceInfo
	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		_, _, _, ok := findInterface(desc)
		return ok
	})
	for _, dev := range devs {
		cfg, intf, alt, _ := findInterface(dev.Desc)
		serial, _ := dev.SerialNumber()

		infos = append(infos, DeviceInfo{
			VID:       dev.Desc.Vendor,
			PID:       dev.Desc.Product,
			Serial:    serial,
			config:    cfg,
			iface:     intf,
			alternate: alt,
		})
		_ = dev.Close()
	}
	if err != nil && err != gousb.ErrorAccess {
		return infos, err
	}

	return infos, nil
}

type resource struct {
	info    DeviceInfo
	timeout time.Duration
}

func (r resource) Address() string {
	return r.info.Address()
}

func (r resource) Open(context.Context) (scpi.Transport, error) {
	return Open(r.info, r.timeout)
}

// Bus enumerates USB-TMC instruments
type Bus struct {
	timeout time.Duration
}

func NewBus(timeout time.Duration) *Bus {
	return &Bus{timeout: timeout}
}

func (b *Bus) Name() string {
	return "usb"
}

func (b *Bus) Resources(ctx context.Context) ([]scpi.Resource, error) {
	infos, err := Enumerate(ctx)

	resources := make([]scpi.Resource, 0, len(infos))
	for _, info := range infos {
		resources = append(resources, resource{info: info, timeout: b.timeout})
	}
	return resources, err
}
