// Package registry holds the fixed Language → Strategy table shared by every
// judging worker. It is built once at startup and never mutated, so it is
// safe for concurrent use without locking.
package registry

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/language"
	"github.com/Harsh-BH/Sentinel/judge/internal/sandbox"
)

// maxConcurrentProbes bounds CheckAll so startup does not fork a docker CLI
// per language at once.
const maxConcurrentProbes = 4

// Prober reports whether a toolchain can be started.
type Prober interface {
	Probe(ctx context.Context, tc sandbox.Toolchain) error
}

// Info describes one registered language.
type Info struct {
	Language         domain.Language `json:"language"`
	SourceFileName   string          `json:"source_file_name"`
	NeedsCompilation bool            `json:"needs_compilation"`
	Image            string          `json:"image"`
	Flags            []string        `json:"flags"`
}

// Availability is the result of probing one language's toolchain.
type Availability struct {
	Language  domain.Language
	Available bool
	Err       error
}

// Registry maps languages to their strategies.
type Registry struct {
	strategies map[domain.Language]language.Strategy
	prober     Prober
}

// New builds a registry from strategies. A later strategy for the same
// language replaces an earlier one.
func New(prober Prober, strategies ...language.Strategy) *Registry {
	m := make(map[domain.Language]language.Strategy, len(strategies))
	for _, s := range strategies {
		m[s.Language()] = s
	}
	return &Registry{strategies: m, prober: prober}
}

// StrategyFor returns the strategy for lang or ErrUnsupportedLanguage.
func (r *Registry) StrategyFor(lang domain.Language) (language.Strategy, error) {
	s, ok := r.strategies[lang]
	if !ok {
		return language.Strategy{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, lang)
	}
	return s, nil
}

// Toolchain returns the sandbox toolchain for a strategy.
func Toolchain(s language.Strategy) sandbox.Toolchain {
	return sandbox.Toolchain{Image: s.Image(), Profile: string(s.Language())}
}

// IsAvailable probes the sandbox toolchain for lang. It is meant for
// startup diagnostics, not per-submission judging.
func (r *Registry) IsAvailable(ctx context.Context, lang domain.Language) bool {
	return r.probe(ctx, lang) == nil
}

func (r *Registry) probe(ctx context.Context, lang domain.Language) error {
	s, err := r.StrategyFor(lang)
	if err != nil {
		return err
	}
	if r.prober == nil {
		return fmt.Errorf("%w: no prober configured", domain.ErrSandboxUnavailable)
	}
	return r.prober.Probe(ctx, Toolchain(s))
}

// Languages returns the registered languages in a stable order.
func (r *Registry) Languages() []domain.Language {
	langs := make([]domain.Language, 0, len(r.strategies))
	for _, lang := range domain.AllLanguages() {
		if _, ok := r.strategies[lang]; ok {
			langs = append(langs, lang)
		}
	}
	return langs
}

// Info returns a description of every registered language.
func (r *Registry) Info() []Info {
	out := make([]Info, 0, len(r.strategies))
	for _, lang := range r.Languages() {
		s := r.strategies[lang]
		out = append(out, Info{
			Language:         lang,
			SourceFileName:   s.SourceFileName(),
			NeedsCompilation: s.NeedsCompilation(),
			Image:            s.Image(),
			Flags:            s.Flags(),
		})
	}
	return out
}

// CheckAll probes every registered language concurrently.
func (r *Registry) CheckAll(ctx context.Context) []Availability {
	langs := r.Languages()
	results := make([]Availability, len(langs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i, lang := range langs {
		g.Go(func() error {
			err := r.probe(gctx, lang)
			results[i] = Availability{Language: lang, Available: err == nil, Err: err}
			return nil // a missing toolchain must not cancel the other probes
		})
	}
	_ = g.Wait()
	return results
}
