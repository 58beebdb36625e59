package screenshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/ninjascan/internal/logger"
)

// DefaultRetryDelay is the wait between a failed candidate and the next one.
const DefaultRetryDelay = 500 * time.Millisecond

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Options configure a Resolver.
type Options struct {
	Providers []Provider
	Prober    Prober

	// RetryDelay defaults to DefaultRetryDelay.
	RetryDelay time.Duration

	// ProbeTimeout bounds a single probe. Zero leaves probes unbounded.
	ProbeTimeout time.Duration

	Sleeper Sleeper
	Logger  *logger.Logger
}

// Resolver probes provider candidates strictly in order and reports the
// first one that loads.
type Resolver struct {
	providers    []Provider
	prober       Prober
	retryDelay   time.Duration
	probeTimeout time.Duration
	sleep        Sleeper
	logger       *logger.Logger
}

// NewResolver validates opts and returns a resolver.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Prober == nil {
		return nil, errors.New("screenshot: prober is required")
	}
	if opts.RetryDelay < 0 {
		return nil, errors.New("screenshot: retry delay must not be negative")
	}
	if opts.ProbeTimeout < 0 {
		return nil, errors.New("screenshot: probe timeout must not be negative")
	}

	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}
	sleep := opts.Sleeper
	if sleep == nil {
		sleep = timerSleep
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	providers := make([]Provider, len(opts.Providers))
	copy(providers, opts.Providers)

	return &Resolver{
		providers:    providers,
		prober:       opts.Prober,
		retryDelay:   retryDelay,
		probeTimeout: opts.ProbeTimeout,
		sleep:        sleep,
		logger:       log,
	}, nil
}

// log returns a logger from context if one was attached, otherwise the resolver's logger
func (r *Resolver) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != logger.GetDefault() {
		return l
	}
	return r.logger
}

// RetryDelay returns the configured inter-candidate delay.
func (r *Resolver) RetryDelay() time.Duration {
	return r.retryDelay
}

// Candidates builds the ordered candidate list for t.
func (r *Resolver) Candidates(t Target) []Candidate {
	candidates := make([]Candidate, 0, len(r.providers))
	for _, p := range r.providers {
		candidates = append(candidates, Candidate{Provider: p.Name, URL: p.Build(t)})
	}
	return candidates
}

// Resolve runs one resolution attempt for raw.
//
// An empty raw yields an idle result without probing. Otherwise the result is
// either success (first candidate that loaded) or failed. If ctx is cancelled
// before the chain settles, Resolve stops probing and returns an error
// wrapping ErrSuperseded.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Result, error) {
	target, err := Normalize(raw)
	if errors.Is(err, ErrNoTarget) {
		return Result{Status: StatusIdle}, nil
	}

	log := r.log(ctx).WithField(logger.FieldTarget, target.URL)
	candidates := r.Candidates(target)
	if len(candidates) == 0 {
		log.Warn("No screenshot providers configured")
		return Result{Status: StatusFailed, Target: target.URL, Reason: ReasonNoProviders}, nil
	}

	start := time.Now()
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, superseded(err)
		}

		probeErr := r.probe(ctx, candidate.URL)
		if err := ctx.Err(); err != nil {
			return Result{}, superseded(err)
		}

		if probeErr == nil {
			logger.With(logger.Fields{
				logger.FieldProvider: candidate.Provider,
				logger.FieldAttempt:  i + 1,
			}).WithDuration(time.Since(start)).Info(log.WithContext(ctx), "Screenshot resolved")

			return Result{
				Status:   StatusSuccess,
				Target:   target.URL,
				ImageURL: candidate.URL,
				Provider: candidate.Provider,
				Attempts: i + 1,
			}, nil
		}

		log.WithFields(logger.Fields{
			logger.FieldProvider: candidate.Provider,
			logger.FieldAttempt:  i + 1,
		}).WithError(probeErr).Debug("Screenshot candidate failed")

		if i == len(candidates)-1 {
			break
		}
		if err := r.sleep(ctx, r.retryDelay); err != nil {
			return Result{}, superseded(err)
		}
	}

	logger.With(logger.Fields{logger.FieldCount: len(candidates)}).
		WithDuration(time.Since(start)).
		Warn(log.WithContext(ctx), "All screenshot candidates failed")

	return Result{
		Status:   StatusFailed,
		Target:   target.URL,
		Reason:   ReasonAllFailed,
		Attempts: len(candidates),
	}, nil
}

// probe runs one attempt. The attempt is abandoned as soon as ctx (or the
// per-probe timeout) is done, even if the prober ignores its context.
func (r *Resolver) probe(ctx context.Context, imageURL string) error {
	probeCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.probeTimeout > 0 {
		probeCtx, cancel = context.WithTimeout(ctx, r.probeTimeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.prober.Probe(probeCtx, imageURL)
	}()

	select {
	case err := <-done:
		return err
	case <-probeCtx.Done():
		return fmt.Errorf("probe abandoned: %w", probeCtx.Err())
	}
}

func superseded(cause error) error {
	return fmt.Errorf("%w: %w", ErrSuperseded, cause)
}

// timerSleep waits on a timer that is always stopped on return.
func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
