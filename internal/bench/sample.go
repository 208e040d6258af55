package bench

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/attenuator-bench/internal/instrument"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/scpi"
)

const (
	checkChannel   = 1
	checkTrace     = "check_s21"
	checkStartFreq = 10e6 // Hz
	checkStopFreq  = 8e9  // Hz
	checkPower     = -5.0 // dBm
)

// CheckSample applies the highest attenuation code, takes a single S21
// sweep and reports whether a sample is inserted: the mean level must
// exceed the presence threshold. The outcome is remembered and available
// through SamplePresent. Instrument failures are returned as they are.
func (b *Bench) CheckSample(ctx context.Context) (bool, error) {
	if !b.acquire() {
		return false, ErrBusy
	}
	defer b.release()

	bound, err := b.instruments()
	if err != nil {
		return false, err
	}

	p, err := b.catalog.Lookup(b.checkProfile)
	if err != nil {
		return false, err
	}

	reference, ok := p.Levels.Max()
	if !ok {
		return false, fmt.Errorf("profile %d has no levels", p.ID)
	}

	b.logger.Info("checking sample",
		slog.Float64("attenuation", reference.Attenuation),
		slog.Int("code", int(reference.Code)))

	if err = bound.Controller.SetCode(ctx, reference.Code); err != nil {
		return false, err
	}

	if err = b.wait(ctx); err != nil {
		return false, err
	}

	values, err := b.checkSweep(ctx, bound.Analyzer)
	if err != nil {
		return false, err
	}

	if len(values) != b.checkPoints {
		b.logger.Warn("unexpected check sweep length", slog.Int("points", len(values)), slog.Int("expected", b.checkPoints))
	}

	mean := stat.Mean(values, nil)
	present := mean > b.presenceThreshold

	b.logger.Info("sample check done",
		slog.Float64("mean", mean),
		slog.Float64("threshold", b.presenceThreshold),
		slog.Bool("present", present))

	b.mu.Lock()
	b.samplePresent = present
	b.mu.Unlock()

	return present, nil
}

// checkSweep presets the analyzer and captures one reduced S21 sweep
// over the default span.
func (b *Bench) checkSweep(ctx context.Context, a instrument.Analyzer) ([]float64, error) {
	commands := []string{
		"SYSTem:FPRESet",
		fmt.Sprintf("CALCulate%d:PARameter:DEFine:EXT '%s',S21", checkChannel, checkTrace),
		"DISPlay:WINDow1:STATe ON",
		fmt.Sprintf("DISPlay:WINDow1:TRACe1:FEED '%s'", checkTrace),
	}
	if err := send(ctx, a, commands...); err != nil {
		return nil, err
	}

	if err := scpi.QueryComplete(ctx, a, fmt.Sprintf("INITiate%d:CONTinuous OFF", checkChannel)); err != nil {
		return nil, err
	}

	commands = []string{
		fmt.Sprintf("SENSe%d:SWEep:TRIGger:POINt OFF", checkChannel),
		sourcePower(checkChannel, checkPower),
		fmt.Sprintf("SENSe%d:FOM:RANGe1:SWEep:TYPE linear", checkChannel),
		fmt.Sprintf("SENSe%d:SWEep:POINts %d", checkChannel, b.checkPoints),
		fmt.Sprintf("SENSe%d:FREQuency:STARt %.0f", checkChannel, checkStartFreq),
		fmt.Sprintf("SENSe%d:FREQuency:STOP %.0f", checkChannel, checkStopFreq),
	}
	if err := send(ctx, a, commands...); err != nil {
		return nil, err
	}

	if err := scpi.QueryComplete(ctx, a, fmt.Sprintf("INITiate%d", checkChannel)); err != nil {
		return nil, err
	}

	return scpi.FetchTrace(ctx, a, checkChannel, checkTrace)
}

func send(ctx context.Context, a instrument.Analyzer, commands ...string) error {
	for _, cmd := range commands {
		if err := a.Send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func sourcePower(channel int, dbm float64) string {
	return fmt.Sprintf("SOURce%d:POWer1 %g dbm", channel, dbm)
}
