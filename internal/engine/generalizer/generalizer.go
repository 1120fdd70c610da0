// Package generalizer implements the level-by-level k-anonymity grouping.
//
// Each batch starts at level 0, where samples grouping to identical exact
// tuples of size >= k are finalized immediately. Samples left over regroup
// at strictly increasing levels; whatever reaches the suppression level L
// without forming a group of size >= k is suppressed.
package generalizer

import (
	"sort"
	"strings"

	"AnonVitals/internal/hierarchy"
	"AnonVitals/internal/model"
)

// Generalizer converts a window's raw samples into equivalence groups that
// each satisfy k-anonymity or are marked suppressed. It is stateless across
// batches and safe to reuse.
type Generalizer struct {
	table  *hierarchy.Table
	fields []string
	k      int
}

// New creates a Generalizer over the given hierarchy table and
// quasi-identifier fields, in declaration order.
func New(table *hierarchy.Table, fields []string, k int) (*Generalizer, error) {
	if k < 1 {
		return nil, model.NewConfigurationError("k_value must be >= 1, got %d", k)
	}
	if len(fields) == 0 {
		return nil, model.NewConfigurationError("at least one quasi-identifier field is required")
	}
	for _, f := range fields {
		if !table.HasField(f) {
			return nil, model.NewConfigurationError("quasi-identifier %q has no hierarchy", f)
		}
	}
	return &Generalizer{table: table, fields: fields, k: k}, nil
}

// K returns the configured minimum group size.
func (g *Generalizer) K() int { return g.k }

// Groups partitions the batch's samples into equivalence groups. Released
// groups hold at least k members and record the lowest level at which they
// reached that size; the rest come back as a single suppressed group per
// suppression-level tuple.
//
// The result is deterministic: identical batch and hierarchy always produce
// identical groupings, ordered by (level, group key).
func (g *Generalizer) Groups(batch *model.Batch) ([]model.EquivalenceGroup, error) {
	if len(batch.Samples) == 0 {
		return nil, nil
	}

	// Fix a total order on the samples first so that member order inside
	// every group is reproducible.
	working := make([]model.RawSample, len(batch.Samples))
	copy(working, batch.Samples)
	sort.SliceStable(working, func(i, j int) bool {
		if !working[i].Timestamp.Equal(working[j].Timestamp) {
			return working[i].Timestamp.Before(working[j].Timestamp)
		}
		return working[i].SourceID < working[j].SourceID
	})

	maxLevel := g.table.SuppressionLevel()
	var groups []model.EquivalenceGroup

	for level := 0; level <= maxLevel && len(working) > 0; level++ {
		buckets := make(map[string][]model.RawSample)
		tokens := make(map[string]map[string]string)

		for _, s := range working {
			key, toks, err := g.tuple(s, level)
			if err != nil {
				return nil, err
			}
			buckets[key] = append(buckets[key], s)
			if _, seen := tokens[key]; !seen {
				tokens[key] = toks
			}
		}

		keys := make([]string, 0, len(buckets))
		for key := range buckets {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var rest []model.RawSample
		for _, key := range keys {
			members := buckets[key]
			switch {
			case len(members) >= g.k:
				groups = append(groups, model.EquivalenceGroup{
					Level:   level,
					Key:     key,
					Tokens:  tokens[key],
					Members: members,
				})
			case level == maxLevel:
				// Maximally generalized and still below k: suppressed.
				groups = append(groups, model.EquivalenceGroup{
					Level:      level,
					Key:        key,
					Tokens:     tokens[key],
					Members:    members,
					Suppressed: true,
				})
			default:
				rest = append(rest, members...)
			}
		}
		working = rest
	}

	return groups, nil
}

// tuple builds the generalized tuple key and per-field tokens for one
// sample at one level. Fields are visited in declaration order. A sample
// missing a quasi-identifier takes the suppression token for it.
func (g *Generalizer) tuple(s model.RawSample, level int) (string, map[string]string, error) {
	parts := make([]string, len(g.fields))
	tokens := make(map[string]string, len(g.fields))

	for i, field := range g.fields {
		value, ok := s.Fields[field]
		if !ok {
			parts[i] = hierarchy.SuppressedToken
			tokens[field] = hierarchy.SuppressedToken
			continue
		}
		token, err := g.table.Generalize(field, value, level)
		if err != nil {
			return "", nil, err
		}
		parts[i] = token
		tokens[field] = token
	}

	return strings.Join(parts, "|"), tokens, nil
}
