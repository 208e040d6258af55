package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/attenuator-bench/internal/discovery"
	"github.com/roman-kulish/attenuator-bench/internal/profile"
	"github.com/roman-kulish/attenuator-bench/internal/results"
)

const (
	DefaultSettle            = 200 * time.Millisecond
	DefaultPresenceThreshold = -15.0 // dB
	DefaultCheckPoints       = 51
	DefaultCheckProfile      = 0
)

var (
	// ErrBusy is returned when an operation is requested while another one is running
	ErrBusy = errors.New("bench is busy")

	// ErrNotBound is returned when instruments have not been discovered
	ErrNotBound = errors.New("instruments not bound")

	// ErrMeasurementFailed wraps every error that aborts a measurement run
	ErrMeasurementFailed = errors.New("measurement failed")
)

// Discoverer binds the instruments used by the bench
type Discoverer interface {
	Discover(ctx context.Context) (*discovery.Bound, error)
	Mode() discovery.Mode
}

// WithLogger sets the logger for the bench
func WithLogger(logger *slog.Logger) func(b *Bench) {
	return func(b *Bench) {
		b.logger = logger.With(slog.String("component", "bench"))
	}
}

// WithStateHook sets a function called on every state transition. err is
// set only on the transition to Failed.
func WithStateHook(hook func(s State, err error)) func(b *Bench) {
	return func(b *Bench) {
		b.hook = hook
	}
}

// WithSettle sets the wait after a code is applied in live mode
func WithSettle(d time.Duration) func(b *Bench) {
	return func(b *Bench) {
		b.settle = d
	}
}

// WithPresenceThreshold sets the mean S21 level above which a sample is present
func WithPresenceThreshold(db float64) func(b *Bench) {
	return func(b *Bench) {
		b.presenceThreshold = db
	}
}

// WithCheckPoints sets the point count of the sample check sweep
func WithCheckPoints(n int) func(b *Bench) {
	return func(b *Bench) {
		b.checkPoints = n
	}
}

// WithCheckProfile sets the profile whose highest attenuation code is
// applied during the sample check
func WithCheckProfile(id int) func(b *Bench) {
	return func(b *Bench) {
		b.checkProfile = id
	}
}

// Bench runs sample checks and measurements on the discovered instruments.
// Only one operation runs at a time; a concurrent call fails with ErrBusy.
type Bench struct {
	discoverer Discoverer
	catalog    *profile.Catalog
	store      *results.Store

	isRunning atomic.Bool

	mu            sync.RWMutex
	bound         *discovery.Bound
	state         State
	samplePresent bool

	settle            time.Duration
	presenceThreshold float64
	checkPoints       int
	checkProfile      int

	hook   func(s State, err error)
	logger *slog.Logger
}

// New creates a Bench with a discard logger
func New(d Discoverer, catalog *profile.Catalog, store *results.Store, options ...func(b *Bench)) *Bench {
	b := Bench{
		discoverer:        d,
		catalog:           catalog,
		store:             store,
		settle:            DefaultSettle,
		presenceThreshold: DefaultPresenceThreshold,
		checkPoints:       DefaultCheckPoints,
		checkProfile:      DefaultCheckProfile,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&b)
	}

	return &b
}

// Discover binds the analyzer and the controller. It returns true if both
// were found; on failure no instrument is bound and the cause is logged.
func (b *Bench) Discover(ctx context.Context) bool {
	if !b.acquire() {
		b.logger.Warn(ErrBusy.Error())
		return false
	}
	defer b.release()

	if err := b.unbind(); err != nil {
		b.logger.Warn(fmt.Sprintf("closing instruments: %s", err.Error()))
	}

	bound, err := b.discoverer.Discover(ctx)
	if err != nil {
		b.logger.Error(fmt.Sprintf("discovery failed: %s", err.Error()))
		return false
	}

	b.mu.Lock()
	b.bound = bound
	b.mu.Unlock()

	return true
}

// Close releases the bound instruments
func (b *Bench) Close() error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.release()

	return b.unbind()
}

// Instruments returns the identities of the bound instruments, or empty
// strings if nothing is bound.
func (b *Bench) Instruments() (analyzer, controller string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.bound == nil {
		return "", ""
	}
	return b.bound.Analyzer.Identity(), b.bound.Controller.Identity()
}

// State returns the state of the latest measurement run
func (b *Bench) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SamplePresent returns the outcome of the latest sample check
func (b *Bench) SamplePresent() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.samplePresent
}

// Results returns the store holding the latest result set
func (b *Bench) Results() *results.Store {
	return b.store
}

// IsRunning returns true if an operation is in progress
func (b *Bench) IsRunning() bool {
	return b.isRunning.Load()
}

func (b *Bench) acquire() bool {
	return b.isRunning.CompareAndSwap(false, true)
}

func (b *Bench) release() {
	b.isRunning.Store(false)
}

func (b *Bench) instruments() (*discovery.Bound, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.bound == nil {
		return nil, ErrNotBound
	}
	return b.bound, nil
}

func (b *Bench) unbind() error {
	b.mu.Lock()
	bound := b.bound
	b.bound = nil
	b.mu.Unlock()

	if bound == nil {
		return nil
	}
	return bound.Close()
}

func (b *Bench) setState(s State, err error) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()

	if b.hook != nil {
		b.hook(s, err)
	}
}

// wait blocks for the settle interval after a code change. Mock instruments
// switch instantly, so nothing is waited for in mock mode.
func (b *Bench) wait(ctx context.Context) error {
	if b.settle <= 0 || b.discoverer.Mode() != discovery.ModeLive {
		return nil
	}

	t := time.NewTimer(b.settle)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
