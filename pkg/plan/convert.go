package plan

import (
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Number is any ordered numeric type accepted for explicit positions.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Floats coerces a numeric sequence to float64.
func Floats[T Number](values []T) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// AsFloat converts a reading value to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDuration lets plain numbers stand for seconds when a duration is expected.
func secondsToDuration(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	if f, ok := AsFloat(data); ok {
		return time.Duration(f * float64(time.Second)), nil
	}
	return data, nil
}

// Decode merges values into out. Only the keys present in values are written,
// unknown keys are rejected and numeric types are coerced.
func Decode(values map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		// Slices and maps written by values are rebuilt instead of being merged
		// into the backing arrays shared with the stored parameters.
		ZeroFields: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDuration,
		),
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(values); err != nil {
		return &domain.ValidationError{Reason: err.Error()}
	}
	return nil
}
