package usbtmc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

const (
	// USB-TMC interfaces are application-specific class, subclass 3
	classApplication gousb.Class = 0xfe
	subclassTMC      gousb.Class = 0x03

	DefaultTimeout = 5 * time.Second

	maxTransfer = 64 * 1024
)

// DeviceInfo identifies a USB-TMC instrument on the bus
type DeviceInfo struct {
	VID    gousb.ID
	PID    gousb.ID
	Serial string

	config    int
	iface     int
	alternate int
}

// Address returns a VISA style resource address
func (d DeviceInfo) Address() string {
	return fmt.Sprintf("USB::0x%04x::0x%04x::%s::INSTR", uint16(d.VID), uint16(d.PID), d.Serial)
}

// findInterface locates the USB-TMC interface in the device descriptor
func findInterface(desc *gousb.DeviceDesc) (cfg, intf, alt int, ok bool) {
	for _, c := range desc.Configs {
		for _, i := range c.Interfaces {
			for _, a := range i.AltSettings {
				if a.Class == classApplication && a.SubClass == subclassTMC {
					return c.Number, i.Number, a.Alternate, true
				}
			}
		}
	}
	return 0, 0, 0, false
}

// Transport is a scpi.Transport over the bulk endpoints of a USB-TMC
// interface.
type Transport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	mu      sync.Mutex
	tags    tagger
	timeout time.Duration
}

// Open claims the USB-TMC interface of the device described by info.
func Open(info DeviceInfo, timeout time.Duration) (*Transport, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == info.VID && desc.Product == info.PID
	})
	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && serialMatches(d, info.Serial) {
			dev = d
			continue
		}
		_ = d.Close()
	}
	if dev == nil {
		ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("USB error: %w", err)
		}
		return nil, fmt.Errorf("device not found (%s)", info.Address())
	}

	// Not fatal on all platforms
	_ = dev.SetAutoDetach(true)

	t := &Transport{
		ctx:     ctx,
		dev:     dev,
		timeout: timeout,
	}

	if err := t.claim(info); err != nil {
		_ = t.Close()
		return nil, err
	}

	return t, nil
}

func serialMatches(dev *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	sn, err := dev.SerialNumber()
	return err == nil && sn == serial
}

func (t *Transport) claim(info DeviceInfo) error {
	cfg, err := t.dev.Config(info.config)
	if err != nil {
		return fmt.Errorf("failed to get config %d: %w", info.config, err)
	}
	t.cfg = cfg

	intf, err := cfg.Interface(info.iface, info.alternate)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", info.iface, err)
	}
	t.intf = intf

	var outNum, inNum int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut && outNum == 0 {
			outNum = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionIn && inNum == 0 {
			inNum = ep.Number
		}
	}
	if outNum == 0 || inNum == 0 {
		return errors.New("bulk endpoints not found")
	}

	if t.epOut, err = intf.OutEndpoint(outNum); err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	if t.epIn, err = intf.InEndpoint(inNum); err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}

	return nil
}

// Write sends msg as a single DEV_DEP_MSG_OUT transfer with EOM set
func (t *Transport) Write(ctx context.Context, msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if _, err := t.epOut.WriteContext(ctx, encodeOut(t.tags.next(), msg)); err != nil {
		return fmt.Errorf("USB write failed: %w", err)
	}
	return nil
}

// ReadMessage requests device dependent data until a transfer with EOM arrives
func (t *Transport) ReadMessage(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	buf := make([]byte, headerSize+maxTransfer)

	var msg []byte
	for {
		tag := t.tags.next()
		if _, err := t.epOut.WriteContext(ctx, encodeRequestIn(tag, maxTransfer)); err != nil {
			return nil, fmt.Errorf("USB request failed: %w", err)
		}

		n, err := t.epIn.ReadContext(ctx, buf)
		if err != nil {
			return nil, fmt.Errorf("USB read failed: %w", err)
		}

		h, err := decodeIn(buf[:n])
		if err != nil {
			return nil, err
		}
		if h.tag != tag {
			return nil, fmt.Errorf("bTag mismatch: sent %d, received %d", tag, h.tag)
		}

		data := append([]byte(nil), buf[headerSize:n]...)
		for uint32(len(data)) < h.transferSize {
			n, err = t.epIn.ReadContext(ctx, buf)
			if err != nil {
				return nil, fmt.Errorf("USB read failed: %w", err)
			}
			data = append(data, buf[:n]...)
		}

		msg = append(msg, data[:h.transferSize]...)
		if h.eom {
			return msg, nil
		}
	}
}

// Close releases USB resources
func (t *Transport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		_ = t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		_ = t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		_ = t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
