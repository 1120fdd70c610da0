// Package imputer recovers usable values from generalized groups: every
// member of a released group receives the group's arithmetic mean per
// quasi-identifier field, so released records stay identical within their
// group while preserving more signal than the interval alone.
package imputer

import (
	"sort"

	"AnonVitals/internal/model"
)

// Policy selects what happens to suppressed samples.
type Policy string

const (
	// Drop removes suppressed samples from the output entirely.
	Drop Policy = "drop"
	// Mark keeps suppressed samples as marker records without field values.
	Mark Policy = "mark"
)

// Imputer converts equivalence groups into anonymized samples.
type Imputer struct {
	fields               []string
	policy               Policy
	imputeIdentityGroups bool
	redactSourceID       bool
}

// New creates an Imputer for the given quasi-identifier fields.
func New(fields []string, policy Policy, imputeIdentityGroups, redactSourceID bool) (*Imputer, error) {
	switch policy {
	case Drop, Mark:
	default:
		return nil, model.NewConfigurationError("suppressed_policy must be 'drop' or 'mark', got %q", string(policy))
	}
	return &Imputer{
		fields:               fields,
		policy:               policy,
		imputeIdentityGroups: imputeIdentityGroups,
		redactSourceID:       redactSourceID,
	}, nil
}

// Apply produces one anonymized sample per member of each released group,
// plus marker records for suppressed groups when the policy is Mark. The
// output is restored to temporal order.
func (im *Imputer) Apply(groups []model.EquivalenceGroup) []model.AnonymizedSample {
	var out []model.AnonymizedSample

	for _, grp := range groups {
		if grp.Suppressed {
			if im.policy == Drop {
				continue
			}
			for _, member := range grp.Members {
				out = append(out, model.AnonymizedSample{
					Timestamp:  member.Timestamp,
					SourceID:   im.sourceID(member),
					Tokens:     grp.Tokens,
					Level:      grp.Level,
					Suppressed: true,
				})
			}
			continue
		}

		means := im.groupMeans(grp.Members)

		// Level-0 groups were never generalized; their raw values pass
		// through unless imputation of identity groups is requested and
		// the group actually has more than one member.
		impute := grp.Level > 0 || (im.imputeIdentityGroups && len(grp.Members) > 1)

		for _, member := range grp.Members {
			fields := make(map[string]float64, len(member.Fields))
			for name, value := range member.Fields {
				fields[name] = value
			}
			if impute {
				for _, name := range im.fields {
					if mean, ok := means[name]; ok {
						fields[name] = mean
					}
				}
			}
			out = append(out, model.AnonymizedSample{
				Timestamp: member.Timestamp,
				SourceID:  im.sourceID(member),
				Fields:    fields,
				Tokens:    grp.Tokens,
				Level:     grp.Level,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// groupMeans computes the arithmetic mean of the raw values per
// quasi-identifier field across the group's members. Members missing a
// field do not contribute to its mean.
func (im *Imputer) groupMeans(members []model.RawSample) map[string]float64 {
	means := make(map[string]float64, len(im.fields))
	for _, name := range im.fields {
		sum, n := 0.0, 0
		for _, member := range members {
			if v, ok := member.Fields[name]; ok {
				sum += v
				n++
			}
		}
		if n > 0 {
			means[name] = sum / float64(n)
		}
	}
	return means
}

func (im *Imputer) sourceID(s model.RawSample) string {
	if im.redactSourceID {
		return ""
	}
	return s.SourceID
}
