// Package survey scores enriched star systems and reports the ones worth
// a visit.
package survey

import (
	"context"
	"errors"
	"log/slog"

	"github.com/adalundhe/stargrid/core/edsm"
)

// Enricher is the client surface the surveyor needs.
type Enricher interface {
	System(ctx context.Context, systemName string) (*edsm.System, error)
}

// Assessment summarizes one enriched system.
type Assessment struct {
	Name        string       `json:"name"`
	MainStar    string       `json:"mainStar,omitempty"`
	Stars       int          `json:"stars"`
	Planets     int          `json:"planets"`
	BodyCount   int          `json:"bodyCount"`
	Landable    int          `json:"landable"`
	Atmospheres int          `json:"atmospheres"`
	Coords      *edsm.Coords `json:"coords,omitempty"`
	Permit      string       `json:"permit,omitempty"`
	Interesting bool         `json:"interesting"`
}

// Assess scores one enrichment result. A system is interesting when it has
// bodies and at least one landable or atmosphere-bearing planet.
func Assess(sys *edsm.System) Assessment {
	a := Assessment{
		Name:      sys.Name,
		BodyCount: sys.BodyCount,
		Coords:    sys.Coords,
	}

	for _, body := range sys.Bodies {
		switch body.Type {
		case "Star":
			a.Stars++
			if body.IsMainStar {
				a.MainStar = body.SubType
			}
		case "Planet":
			a.Planets++
			if body.IsLandable {
				a.Landable++
			}
			if hasAtmosphere(body.AtmosphereType) {
				a.Atmospheres++
			}
		}
	}

	if sys.RequirePermit {
		a.Permit = sys.PermitName
		if a.Permit == "" {
			a.Permit = "unnamed permit"
		}
	}

	a.Interesting = a.BodyCount > 0 && (a.Landable > 0 || a.Atmospheres > 0)
	return a
}

func hasAtmosphere(atmosphereType string) bool {
	return atmosphereType != "" && atmosphereType != "No atmosphere"
}

// ProgressFunc is called before each system fetch.
type ProgressFunc func(index, total int, systemName string)

// Surveyor enriches a list of system names and partitions them into
// interesting, uninteresting, unknown and failed.
type Surveyor struct {
	client    Enricher
	logger    *slog.Logger
	progress  ProgressFunc
	minBodies int
}

// SurveyorOption is a functional option for configuring a Surveyor.
type SurveyorOption func(*Surveyor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) SurveyorOption {
	return func(s *Surveyor) { s.logger = logger }
}

// WithProgress sets the per-system progress callback.
func WithProgress(fn ProgressFunc) SurveyorOption {
	return func(s *Surveyor) { s.progress = fn }
}

// WithMinBodies raises the body-count floor for interesting systems.
func WithMinBodies(n int) SurveyorOption {
	return func(s *Surveyor) {
		if n > 0 {
			s.minBodies = n
		}
	}
}

// NewSurveyor creates a Surveyor over the enrichment client.
func NewSurveyor(client Enricher, opts ...SurveyorOption) *Surveyor {
	s := &Surveyor{
		client:    client,
		logger:    slog.Default(),
		minBodies: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run enriches every name in order. Unknown systems and per-system fetch
// failures are recorded in the report rather than aborting the survey;
// only context cancellation stops the run.
func (s *Surveyor) Run(ctx context.Context, names []string) (*Report, error) {
	report := &Report{}

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.progress != nil {
			s.progress(i+1, len(names), name)
		}

		sys, err := s.client.System(ctx, name)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if errors.Is(err, edsm.ErrSystemNotKnown) {
				report.Unknown = append(report.Unknown, name)
				continue
			}
			s.logger.Warn("survey fetch failed", "system", name, "error", err)
			report.Failures = append(report.Failures, Failure{Name: name, Error: err.Error()})
			continue
		}

		a := Assess(sys)
		if a.Name == "" {
			a.Name = name
		}
		if a.BodyCount < s.minBodies {
			a.Interesting = false
		}

		if a.Interesting {
			report.Interesting = append(report.Interesting, a)
		} else {
			report.Uninteresting++
		}
	}

	return report, nil
}
