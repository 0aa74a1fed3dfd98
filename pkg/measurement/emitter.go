package measurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type namedSink struct {
	name string
	sink Sink
}

// Emitter fans a measurement out to every registered sink.
// Sink failures are logged and returned, never retried.
type Emitter struct {
	sinks []namedSink
	log   *logrus.Entry
}

func NewEmitter(log *logrus.Entry) *Emitter {
	return &Emitter{log: log}
}

// Add registers a sink. Not safe to call once Emit is in use.
func (e *Emitter) Add(name string, s Sink) {
	e.sinks = append(e.sinks, namedSink{name: name, sink: s})
}

func (e *Emitter) Len() int {
	return len(e.sinks)
}

// Emit submits m to all sinks. Every sink is attempted even if an earlier
// one fails; the failures are joined in the returned error.
func (e *Emitter) Emit(ctx context.Context, m Measurement) error {
	var errs []error
	for _, s := range e.sinks {
		if err := s.sink.Submit(ctx, m); err != nil {
			err = fmt.Errorf("%w to %s: %w", ErrSinkSubmit, s.name, err)
			e.log.WithError(err).WithField("sink", s.name).Error("dropping measurement")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
