package bench

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/attenuator-bench/internal/discovery"
	"github.com/roman-kulish/attenuator-bench/internal/instrument"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/scpi"
	"github.com/roman-kulish/attenuator-bench/internal/profile"
	"github.com/roman-kulish/attenuator-bench/internal/reduce"
)

const measureChannel = 1

// Trace names defined on the analyzer for a measurement run, in display
// feed order.
const (
	TraceS21 = "meas_s21"
	TraceS11 = "meas_s11"
	TraceS22 = "meas_s22"
)

var measureTraces = []struct {
	name      string
	parameter string
}{
	{TraceS21, "S21"},
	{TraceS11, "S11"},
	{TraceS22, "S22"},
}

// Measure sweeps every code of the profile, highest attenuation first, and
// replaces the stored results with the reduced data. The store is cleared
// on entry, so a failed run leaves it empty. The context is checked between
// codes; a single instrument exchange is never interrupted.
//
// Any failure moves the bench to Failed and is returned wrapped in
// ErrMeasurementFailed. ErrBusy is returned as is and does not change state.
func (b *Bench) Measure(ctx context.Context, profileID int) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.release()

	if err := b.measure(ctx, profileID); err != nil {
		b.logger.Error(fmt.Sprintf("measurement failed: %s", err.Error()), slog.Int("profile", profileID))
		b.setState(Failed, err)
		return fmt.Errorf("%w: %w", ErrMeasurementFailed, err)
	}

	return nil
}

func (b *Bench) measure(ctx context.Context, profileID int) error {
	b.setState(Configuring, nil)
	b.store.Clear()

	bound, err := b.instruments()
	if err != nil {
		return err
	}

	p, err := b.catalog.Lookup(profileID)
	if err != nil {
		return err
	}

	logger := b.logger.With(slog.Int("profile", p.ID))
	logger.Info("configuring measurement", slog.String("settings", p.String()))

	if err = configure(ctx, bound.Analyzer, &p); err != nil {
		return fmt.Errorf("configuring analyzer: %w", err)
	}

	order := p.Levels.ApplicationOrder()
	sweeps := make([]reduce.RawSweep, 0, len(order))

	for k, level := range order {
		if err = ctx.Err(); err != nil {
			return err
		}

		b.setState(SweepingCode, nil)
		logger.Info("sweeping code",
			slog.Int("step", k+1),
			slog.Int("of", len(order)),
			slog.Float64("attenuation", level.Attenuation),
			slog.String("code", fmt.Sprintf("%06b", level.Code)))

		sweep, err := b.sweepCode(ctx, bound, level)
		if err != nil {
			return fmt.Errorf("code %d (%g dB): %w", level.Code, level.Attenuation, err)
		}

		sweeps = append(sweeps, sweep)
	}

	b.setState(Reducing, nil)

	if n := sweeps[0].Len(); n != p.PointCount {
		logger.Warn("sweep length differs from profile point count", slog.Int("points", n), slog.Int("pointCount", p.PointCount))
	}

	rs, err := reduce.Reduce(sweeps, p.Levels, p)
	if err != nil {
		return fmt.Errorf("reducing sweeps: %w", err)
	}

	b.store.Replace(rs)
	b.setState(Done, nil)

	logger.Info("measurement done", slog.Int("codes", len(sweeps)))
	return nil
}

// configure defines the three measured traces and sets up the sweep of p
func configure(ctx context.Context, a instrument.Analyzer, p *profile.Profile) error {
	var commands []string
	for _, t := range measureTraces {
		commands = append(commands, fmt.Sprintf("CALCulate%d:PARameter:DEFine:EXT '%s',%s", measureChannel, t.name, t.parameter))
	}

	commands = append(commands, "DISPlay:WINDow1:TRACe1:DELete")
	for i, t := range measureTraces {
		commands = append(commands, fmt.Sprintf("DISPlay:WINDow1:TRACe%d:FEED '%s'", i+1, t.name))
	}

	if err := send(ctx, a, commands...); err != nil {
		return err
	}

	if err := scpi.QueryComplete(ctx, a, fmt.Sprintf("INITiate%d:CONTinuous ON", measureChannel)); err != nil {
		return err
	}

	return send(ctx, a,
		sourcePower(measureChannel, p.SourcePower),
		fmt.Sprintf("SENSe%d:FOM:RANGe1:SWEep:TYPE linear", measureChannel),
		fmt.Sprintf("SENSe%d:SWEep:POINts %d", measureChannel, p.PointCount),
		fmt.Sprintf("SENSe%d:FREQuency:STARt %.0f", measureChannel, p.StartFreq),
		fmt.Sprintf("SENSe%d:FREQuency:STOP %.0f", measureChannel, p.StopFreq),
	)
}

// sweepCode applies level on the controller and reads the three traces
func (b *Bench) sweepCode(ctx context.Context, bound *discovery.Bound, level profile.Level) (reduce.RawSweep, error) {
	if err := bound.Controller.SetCode(ctx, level.Code); err != nil {
		return reduce.RawSweep{}, err
	}

	if err := b.wait(ctx); err != nil {
		return reduce.RawSweep{}, err
	}

	if err := bound.Analyzer.Send(ctx, "TRIG:SCOP CURRENT"); err != nil {
		return reduce.RawSweep{}, err
	}

	traces := make([][]float64, len(measureTraces))
	for i, t := range measureTraces {
		values, err := scpi.FetchTrace(ctx, bound.Analyzer, measureChannel, t.name)
		if err != nil {
			return reduce.RawSweep{}, err
		}
		traces[i] = values
	}

	b.logger.Debug("traces captured", slog.Int("points", len(traces[0])))

	return reduce.RawSweep{S21: traces[0], S11: traces[1], S22: traces[2]}, nil
}
