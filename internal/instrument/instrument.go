package instrument

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Analyzer is a network-analyzer-class instrument driven by ASCII
// instrument-control commands.
type Analyzer interface {
	// Identity returns the identity string reported by the instrument.
	Identity() string

	// Send writes a command and does not wait for a reply.
	Send(ctx context.Context, command string) error

	// Query writes a command and blocks until the reply is received.
	Query(ctx context.Context, command string) (string, error)
}

// Controller applies attenuation-select bit patterns to the device under test.
type Controller interface {
	Identity() string
	SetCode(ctx context.Context, code uint8) error
}

// Identity is a parsed `*IDN?` reply: "vendor,model,serial,firmware".
type Identity struct {
	Vendor   string
	Model    string
	Serial   string
	Firmware string
}

// ParseIdentity parses an `*IDN?` reply. The reply must carry exactly four
// comma separated fields.
func ParseIdentity(idn string) (Identity, error) {
	fields := strings.Split(strings.TrimSpace(idn), ",")
	if len(fields) != 4 {
		return Identity{}, fmt.Errorf("invalid identity %q: expected 4 fields, got %d", idn, len(fields))
	}

	return Identity{
		Vendor:   strings.TrimSpace(fields[0]),
		Model:    strings.TrimSpace(fields[1]),
		Serial:   strings.TrimSpace(fields[2]),
		Firmware: strings.TrimSpace(fields[3]),
	}, nil
}

// MatchesModel reports whether the identity model contains any of the given
// model names.
func (i Identity) MatchesModel(models []string) bool {
	for _, model := range models {
		if model != "" && strings.Contains(i.Model, model) {
			return true
		}
	}
	return false
}

func (i Identity) String() string {
	return strings.Join([]string{i.Vendor, i.Model, i.Serial, i.Firmware}, ",")
}

// Close closes v if it holds resources.
func Close(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
