package measurement

import (
	"fmt"
	"maps"
	"math"
	"time"
)

// Builder collects fields for one Measurement.
// The first invalid field is remembered and reported by Build.
type Builder struct {
	name   string
	fields map[string]any
	time   time.Time
	err    error
}

func NewBuilder(name string, t time.Time) *Builder {
	return &Builder{
		name:   name,
		fields: make(map[string]any),
		time:   t,
	}
}

// Field sets a numeric field. A repeated name overwrites the earlier value.
func (b *Builder) Field(name string, value any) *Builder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = fmt.Errorf("%w: empty field name", ErrMeasurementBuild)
		return b
	}

	v, err := numeric(value)
	if err != nil {
		b.err = fmt.Errorf("%w: field %q: %w", ErrMeasurementBuild, name, err)
		return b
	}
	b.fields[name] = v
	return b
}

func (b *Builder) Build() (Measurement, error) {
	if b.err != nil {
		return Measurement{}, b.err
	}
	if b.name == "" {
		return Measurement{}, fmt.Errorf("%w: empty measurement name", ErrMeasurementBuild)
	}
	if len(b.fields) == 0 {
		return Measurement{}, fmt.Errorf("%w: %s has no fields", ErrMeasurementBuild, b.name)
	}

	return Measurement{
		Name:   b.name,
		Fields: maps.Clone(b.fields),
		Time:   b.time,
	}, nil
}

// numeric normalizes value to float64 or int64.
func numeric(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite value %v", v)
		}
		return v, nil
	case float32:
		return numeric(float64(v))
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}
