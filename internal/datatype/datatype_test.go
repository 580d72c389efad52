package datatype

import (
	"testing"

	"github.com/fluree/flurecore/internal/ferr"
	"github.com/stretchr/testify/require"
)

func TestInfer(t *testing.T) {
	require.Equal(t, String, Infer("hi", false))
	require.Equal(t, LangString, Infer("hi", true))
	require.Equal(t, Long, Infer(42, false))
	require.Equal(t, Decimal, Infer(3.14, false))
	require.Equal(t, Boolean, Infer(true, false))
}

func TestCoerceStringToInteger(t *testing.T) {
	v, err := Coerce("8", Int)
	require.NoError(t, err)
	require.Equal(t, int64(8), v)
}

func TestCoerceFailureCarriesData(t *testing.T) {
	_, err := Coerce("alot", Int)
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.ValueCoercion))
	var fe *ferr.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "Value alot cannot be coerced to provided datatype int", fe.Message)
	require.Equal(t, map[string]any{"value": "alot", "targetType": "int"}, fe.Data)
}

func TestCoerceSignedIntegerFamilies(t *testing.T) {
	_, err := Coerce(-1, PositiveInteger)
	require.Error(t, err)
	v, err := Coerce(5, PositiveInteger)
	require.NoError(t, err)
	require.Equal(t, int64(5), v)
}

func TestCoerceFloatInfinity(t *testing.T) {
	v, err := Coerce("INF", Double)
	require.NoError(t, err)
	require.True(t, v.(float64) > 1e300)
}

func TestCoerceTemporal(t *testing.T) {
	v, err := Coerce("2024-01-02", Date)
	require.NoError(t, err)
	require.Equal(t, 2024, v.(interface{ Year() int }).Year())
}
