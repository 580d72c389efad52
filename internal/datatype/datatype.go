// Package datatype implements value inference and coercion against xsd/
// rdf datatypes (spec.md §4.8), used by the commit assembler when
// translating JSON-LD literal values into typed flake objects.
package datatype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/sid"
)

// Well-known xsd/rdf local names used throughout coercion.
const (
	String           = "string"
	LangString       = "langString"
	Long             = "long"
	Decimal          = "decimal"
	Double           = "double"
	Float            = "float"
	Int              = "int"
	Short            = "short"
	Byte             = "byte"
	Boolean          = "boolean"
	AnyURI           = "anyURI"
	DateTime         = "dateTime"
	Date             = "date"
	Time             = "time"
	PositiveInteger  = "positiveInteger"
	NegativeInteger  = "negativeInteger"
	NonNegativeInteger = "nonNegativeInteger"
	NonPositiveInteger = "nonPositiveInteger"
)

// Infer picks a datatype local name for a raw JSON-ish value when the
// caller declared none (spec.md §4.8): strings become xsd:string, or
// rdf:langString when a language tag accompanies them; integers become
// xsd:long; other numbers become xsd:decimal; booleans become
// xsd:boolean.
func Infer(value any, hasLang bool) string {
	switch v := value.(type) {
	case string:
		if hasLang {
			return LangString
		}
		return String
	case bool:
		return Boolean
	case int, int32, int64:
		return Long
	case float32, float64:
		if isWholeNumber(v) {
			return Long
		}
		return Decimal
	default:
		return String
	}
}

func isWholeNumber(v any) bool {
	switch n := v.(type) {
	case float64:
		return n == math.Trunc(n)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	default:
		return false
	}
}

// Coerce attempts to convert value to match requiredDT, per spec.md §4.8.
// It parses strings for numerics/booleans/ISO-8601 temporal types and
// recognizes INF/-INF for float/double, honoring signedness constraints
// for the integer families. Returns a *ferr.Error of kind ValueCoercion
// on failure, carrying the offending value and target type as Data.
func Coerce(value any, requiredDT string) (any, error) {
	switch requiredDT {
	case String, LangString:
		return coerceString(value)
	case Boolean:
		return coerceBool(value, requiredDT)
	case Long, Int, Short, Byte:
		return coerceInteger(value, requiredDT)
	case PositiveInteger, NegativeInteger, NonNegativeInteger, NonPositiveInteger:
		return coerceSignedInteger(value, requiredDT)
	case Decimal, Double, Float:
		return coerceFloat(value, requiredDT)
	case DateTime, Date, Time:
		return coerceTemporal(value, requiredDT)
	case AnyURI:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, coercionErr(value, requiredDT)
	default:
		return value, nil
	}
}

func coercionErr(value any, target string) error {
	return ferr.New(ferr.ValueCoercion, "Value %v cannot be coerced to provided datatype %s", value, target).
		WithData(map[string]any{"value": value, "targetType": target})
}

func coerceString(value any) (any, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", value), nil
}

func coerceBool(value any, target string) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, coercionErr(value, target)
		}
		return b, nil
	default:
		return nil, coercionErr(value, target)
	}
}

func coerceInteger(value any, target string) (any, error) {
	n, ok := toInt64(value)
	if !ok {
		return nil, coercionErr(value, target)
	}
	switch target {
	case Short:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, coercionErr(value, target)
		}
	case Byte:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return nil, coercionErr(value, target)
		}
	case Int:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, coercionErr(value, target)
		}
	}
	return n, nil
}

func coerceSignedInteger(value any, target string) (any, error) {
	n, ok := toInt64(value)
	if !ok {
		return nil, coercionErr(value, target)
	}
	switch target {
	case PositiveInteger:
		if n <= 0 {
			return nil, coercionErr(value, target)
		}
	case NegativeInteger:
		if n >= 0 {
			return nil, coercionErr(value, target)
		}
	case NonNegativeInteger:
		if n < 0 {
			return nil, coercionErr(value, target)
		}
	case NonPositiveInteger:
		if n > 0 {
			return nil, coercionErr(value, target)
		}
	}
	return n, nil
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func coerceFloat(value any, target string) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		switch trimmed {
		case "INF", "Infinity":
			return math.Inf(1), nil
		case "-INF", "-Infinity":
			return math.Inf(-1), nil
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, coercionErr(value, target)
		}
		return n, nil
	default:
		return nil, coercionErr(value, target)
	}
}

// ISO-8601-ish layouts tried in order for temporal coercion; these cover
// date, dateTime, and time with and without an explicit zone offset.
var temporalLayouts = map[string][]string{
	DateTime: {time.RFC3339, "2006-01-02T15:04:05"},
	Date:     {"2006-01-02Z07:00", "2006-01-02"},
	Time:     {"15:04:05Z07:00", "15:04:05"},
}

func coerceTemporal(value any, target string) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, coercionErr(value, target)
	}
	for _, layout := range temporalLayouts[target] {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, coercionErr(value, target)
}

// DatatypeSID maps a local name to its SID under the xsd or rdf namespace
// seeded in package sid.
func DatatypeSID(localName string) sid.SID {
	if localName == LangString {
		return sid.SID{NS: sid.NSRDF, Name: localName}
	}
	return sid.SID{NS: sid.NSXSD, Name: localName}
}
