package toolserver

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// DefaultPrecision is the number of decimals kept for floats in tool results.
const DefaultPrecision = 2

// RoundingMarshal serializes v as JSON with every float rounded to precision
// decimals. Integers and strings pass through unchanged.
func RoundingMarshal(v interface{}, precision int) (string, error) {
	data, err := marshalNoEscape(v)
	if err != nil {
		return "", err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return "", err
	}

	out, err := marshalNoEscape(roundValue(generic, precision))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func roundValue(v interface{}, precision int) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			val[k] = roundValue(item, precision)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = roundValue(item, precision)
		}
		return val
	case json.Number:
		s := val.String()
		if !strings.ContainsAny(s, ".eE") {
			return val
		}
		f, err := val.Float64()
		if err != nil {
			return val
		}
		return roundFloat(f, precision)
	default:
		return v
	}
}

func roundFloat(f float64, precision int) float64 {
	if precision < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return f
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(f*scale) / scale
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
