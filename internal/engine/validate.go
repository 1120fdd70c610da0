package engine

import (
	"AnonVitals/internal/config"
	"AnonVitals/internal/model"
)

// applyClamp clamps configured fields into their [min, max] range and
// returns the adjusted samples plus the number of clamped values. Readings
// outside a sensor's physical range are artifacts, not data; the input
// samples are left untouched.
func applyClamp(samples []model.RawSample, rules []config.ClampRule) ([]model.RawSample, int) {
	if len(rules) == 0 {
		return samples, 0
	}

	out := make([]model.RawSample, len(samples))
	clamped := 0

	for i, s := range samples {
		out[i] = s
		copied := false
		for _, rule := range rules {
			v, ok := s.Fields[rule.Field]
			if !ok || (v >= rule.Min && v <= rule.Max) {
				continue
			}
			if !copied {
				fields := make(map[string]float64, len(s.Fields))
				for name, value := range s.Fields {
					fields[name] = value
				}
				out[i].Fields = fields
				copied = true
			}
			if v < rule.Min {
				out[i].Fields[rule.Field] = rule.Min
			} else {
				out[i].Fields[rule.Field] = rule.Max
			}
			clamped++
		}
	}

	return out, clamped
}
