package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/hazardscope/internal/output"
)

// Multi fans out records to multiple output.Output implementations.
// A failing output does not stop delivery to the ones after it.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi that fans out to the given outputs. Nil entries are skipped.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len reports how many outputs are wrapped.
func (m *Multi) Len() int { return len(m.outputs) }

// Write delivers rec to every wrapped output and joins their errors.
func (m *Multi) Write(ctx context.Context, rec output.Record) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped output, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
