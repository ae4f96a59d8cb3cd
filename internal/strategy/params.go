package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params is the decoded JSON parameter object of a strategy config.
type Params map[string]any

// MergeParams layers defaults, then config defaults, then per-strategy overrides.
func MergeParams(layers ...map[string]any) Params {
	out := Params{}
	for _, layer := range layers {
		for k, v := range layer {
			if strings.EqualFold(k, "enabled") {
				continue
			}
			out[k] = v
		}
	}
	return out
}

func (p Params) Int(key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return def, nil
	}
	f, err := toFloat(raw)
	if err != nil {
		return 0, &ParamError{Param: key, Reason: err.Error()}
	}
	if f != math.Trunc(f) {
		return 0, &ParamError{Param: key, Reason: "must be an integer"}
	}
	return int(f), nil
}

func (p Params) Float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return def, nil
	}
	f, err := toFloat(raw)
	if err != nil {
		return 0, &ParamError{Param: key, Reason: err.Error()}
	}
	return f, nil
}

// OptFloat returns nil when key is absent or null.
func (p Params) OptFloat(key string) (*float64, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	f, err := toFloat(raw)
	if err != nil {
		return nil, &ParamError{Param: key, Reason: err.Error()}
	}
	return &f, nil
}

func toFloat(v any) (float64, error) {
	f, err := rawFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", v)
	}
	return f, nil
}

func rawFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
