package storage

import (
	"context"
	"errors"

	"cometguard/internal/model"
)

// Sink receives completed risk assessments.
type Sink interface {
	PutAssessments(ctx context.Context, assessments []model.RiskAssessment) error
}

type multiSink []Sink

// Multi fans a batch out to every non-nil sink. All sinks are attempted;
// their errors are joined.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) PutAssessments(ctx context.Context, assessments []model.RiskAssessment) error {
	var errs []error
	for _, s := range m {
		if err := s.PutAssessments(ctx, assessments); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
