package parallel

import (
	"fmt"

	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

// SerialPorts enumerates and opens host serial ports at 8N1
type SerialPorts struct {
	mode *serial.Mode
}

// NewSerialPorts creates a port provider using baudRate, 8 data bits, no
// parity and one stop bit.
func NewSerialPorts(baudRate int) *SerialPorts {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	return &SerialPorts{
		mode: &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
}

// Ports lists serial ports present on the host
func (s *SerialPorts) Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}
	return ports, nil
}

// Open opens the named port
func (s *SerialPorts) Open(name string) (Port, error) {
	port, err := serial.Open(name, s.mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return port, nil
}
