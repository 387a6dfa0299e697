package orm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// timeLayouts are the textual timestamp encodings drivers hand back.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// convertField coerces a driver or JSON value to the Go type of f.
func convertField(f *schema.Field, v any) (any, error) {
	if f == nil {
		return convertRaw(v), nil
	}
	return convert(f.Kind, v)
}

func convertRaw(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func convert(kind core.FieldKind, v any) (any, error) {
	v = convertRaw(v)
	if v == nil {
		return nil, nil
	}
	if id, ok := v.(query.Identifier); ok {
		v = id.PrimaryKey()
	}
	switch kind {
	case core.KindInt, core.KindForeignKey:
		return toInt64(v)
	case core.KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case string:
			return strconv.ParseFloat(x, 64)
		default:
			n, err := toInt64(v)
			return float64(n), err
		}
	case core.KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(x)
		default:
			n, err := toInt64(v)
			return n != 0, err
		}
	case core.KindTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return parseTime(x)
		}
	case core.KindString, core.KindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, kind)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint:
		return uintToInt64(uint64(x))
	case uint64:
		return uintToInt64(x)
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case query.Identifier:
		return x.PrimaryKey(), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to an integer", v)
	}
}

func uintToInt64(x uint64) (int64, error) {
	if x > math.MaxInt64 {
		return 0, fmt.Errorf("integer %d overflows int64", x)
	}
	return int64(x), nil
}

// floatToInt64 accepts only integral values in the int64 range.
func floatToInt64(x float64) (int64, error) {
	if math.Trunc(x) != x {
		return 0, fmt.Errorf("cannot convert non-integral %v to an integer", x)
	}
	if x < math.MinInt64 || x >= math.MaxInt64 {
		return 0, fmt.Errorf("float %v overflows int64", x)
	}
	return int64(x), nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}
