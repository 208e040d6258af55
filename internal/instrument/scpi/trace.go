package scpi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roman-kulish/attenuator-bench/internal/instrument"
)

// CompletionMarker is the reply to `*OPC?` once all pending operations are done
const CompletionMarker = "1"

// ParseTrace parses a comma separated ASCII trace payload into values.
func ParseTrace(payload string) ([]float64, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty trace payload")
	}

	fields := strings.Split(payload, ",")
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid trace value at index %d: %w", i, err)
		}
		values[i] = v
	}

	return values, nil
}

// QueryComplete sends command followed by `*OPC?` and blocks until the
// instrument reports completion.
func QueryComplete(ctx context.Context, a instrument.Analyzer, command string) error {
	command = command + ";*OPC?"

	reply, err := a.Query(ctx, command)
	if err != nil {
		return err
	}

	if strings.TrimSpace(reply) != CompletionMarker {
		return instrument.NewCommunicationError(a.Identity(), command, fmt.Errorf("%w: unexpected reply %q", instrument.ErrIncomplete, reply))
	}
	return nil
}

// FetchTrace selects the named trace, switches to ASCII format and reads the
// formatted trace data of the channel.
func FetchTrace(ctx context.Context, a instrument.Analyzer, channel int, name string) ([]float64, error) {
	if err := a.Send(ctx, fmt.Sprintf("CALCulate%d:PARameter:SELect '%s'", channel, name)); err != nil {
		return nil, err
	}

	if err := a.Send(ctx, "FORMat ASCII"); err != nil {
		return nil, err
	}

	command := fmt.Sprintf("CALCulate%d:DATA? FDATA", channel)
	payload, err := a.Query(ctx, command)
	if err != nil {
		return nil, err
	}

	values, err := ParseTrace(payload)
	if err != nil {
		return nil, instrument.NewCommunicationError(a.Identity(), command, err)
	}

	return values, nil
}
