package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
)

// scope records diagnostics and metrics for one stage over one (area, product).
type scope struct {
	p       *Pipeline
	stage   string
	area    string
	product string
}

func (p *Pipeline) scope(stage, area, product string) *scope {
	return &scope{p: p, stage: stage, area: area, product: product}
}

func (s *scope) diag(path, msg string, err error) {
	s.p.report.add(Diagnostic{Stage: s.stage, Area: s.area, Product: s.product, Path: path, Message: msg, Err: err})
}

func (s *scope) count(outcome string) {
	s.p.deps.Metrics.Units.WithLabelValues(s.stage, outcome).Inc()
}

// note records an informational diagnostic under the given outcome.
func (s *scope) note(path, outcome, format string, args ...interface{}) {
	s.count(outcome)
	s.diag(path, fmt.Sprintf(format, args...), nil)
}

// fail records a failed unit. The error is wrapped into UnitError.
func (s *scope) fail(path, msg string, err error) {
	s.count(observability.OutcomeFailed)
	s.diag(path, msg, UnitError.Wrap(err))
}

// unit is one independent piece of stage work: a raster or a mosaic group.
type unit func()

// runUnits executes units on a pool bounded by the configured worker count
// and waits for all of them. Units report their own failures; the returned
// error is only the context error when the run was interrupted, in which case
// no new unit is scheduled.
func (p *Pipeline) runUnits(ctx context.Context, stage string, units []unit) error {
	start := p.deps.Clock.Now()
	defer func() {
		p.deps.Metrics.StageDuration.WithLabelValues(stage).Observe(p.deps.Clock.Since(start).Seconds())
	}()
	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		u := u
		g.Go(func() error {
			u()
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}
