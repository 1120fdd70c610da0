package hierarchy

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"AnonVitals/internal/model"

	"gopkg.in/yaml.v3"
)

// SuppressedToken is the generalization token at the suppression level, and
// the token for values that fall outside every interval of a level.
const SuppressedToken = "*"

// Interval is a half-open numeric interval [Lo, Hi). Half-open boundaries
// keep interval membership unambiguous for values on a cut point.
type Interval struct {
	Lo float64
	Hi float64
}

// Contains reports whether v falls inside the interval.
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Lo && v < iv.Hi
}

// Token returns the generalization token for the interval.
func (iv Interval) Token() string {
	return fmt.Sprintf("[%s,%s)", strconv.FormatFloat(iv.Lo, 'g', -1, 64), strconv.FormatFloat(iv.Hi, 'g', -1, 64))
}

// FieldDef is the hierarchy definition for one quasi-identifying field.
// Each level is given as ascending cut points: cuts [a, b, c] define the
// intervals [a,b) and [b,c). Levels are ordered finest to coarsest; level 0
// (identity) and the suppression level are implicit.
type FieldDef struct {
	Name   string     `yaml:"name"`
	Levels []LevelDef `yaml:"levels"`
}

// LevelDef holds the cut points of one generalization level.
type LevelDef struct {
	Cuts []float64 `yaml:"cuts"`
}

// Definition is the on-disk hierarchy document.
type Definition struct {
	Fields []FieldDef `yaml:"fields"`
}

type fieldLevels struct {
	name   string
	levels [][]Interval // index 0 holds level 1
}

// Table is the process-wide hierarchy table: per-field ordered
// generalization levels, read-only after construction and freely shared.
type Table struct {
	fields   map[string]*fieldLevels
	order    []string
	maxLevel int // the suppression level L
}

// Load reads a hierarchy definition from a YAML file and builds the table.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hierarchy YAML: %w", err)
	}

	return New(def)
}

// New builds and validates a hierarchy table from a definition.
//
// Construction enforces the monotonic-coarsening invariant: within each
// field, every interval at level i must be contained in exactly one
// interval at level i+1. Gaps or overlaps are configuration bugs and fail
// with *model.HierarchyInvalidError.
func New(def Definition) (*Table, error) {
	if len(def.Fields) == 0 {
		return nil, &model.HierarchyInvalidError{Field: "", Reason: "definition declares no fields"}
	}

	t := &Table{fields: make(map[string]*fieldLevels, len(def.Fields))}

	depth := 0
	for _, fd := range def.Fields {
		if fd.Name == "" {
			return nil, &model.HierarchyInvalidError{Field: fd.Name, Reason: "field without a name"}
		}
		if _, dup := t.fields[fd.Name]; dup {
			return nil, &model.HierarchyInvalidError{Field: fd.Name, Reason: "field declared twice"}
		}
		if len(fd.Levels) == 0 {
			return nil, &model.HierarchyInvalidError{Field: fd.Name, Reason: "field declares no levels"}
		}

		fl := &fieldLevels{name: fd.Name}
		for i, lvl := range fd.Levels {
			ivs, err := intervalsFromCuts(fd.Name, i+1, lvl.Cuts)
			if err != nil {
				return nil, err
			}
			fl.levels = append(fl.levels, ivs)
		}

		if err := checkCoarsening(fd.Name, fl.levels); err != nil {
			return nil, err
		}

		t.fields[fd.Name] = fl
		t.order = append(t.order, fd.Name)
		if len(fl.levels) > depth {
			depth = len(fl.levels)
		}
	}

	// The suppression level L is derived from the definition itself, one
	// past the deepest field.
	t.maxLevel = depth + 1
	return t, nil
}

func intervalsFromCuts(field string, level int, cuts []float64) ([]Interval, error) {
	if len(cuts) < 2 {
		return nil, &model.HierarchyInvalidError{
			Field:  field,
			Reason: fmt.Sprintf("level %d needs at least two cut points", level),
		}
	}
	ivs := make([]Interval, 0, len(cuts)-1)
	for i := 1; i < len(cuts); i++ {
		if cuts[i] <= cuts[i-1] {
			return nil, &model.HierarchyInvalidError{
				Field:  field,
				Reason: fmt.Sprintf("level %d cut points must be strictly ascending (%g after %g)", level, cuts[i], cuts[i-1]),
			}
		}
		ivs = append(ivs, Interval{Lo: cuts[i-1], Hi: cuts[i]})
	}
	return ivs, nil
}

// checkCoarsening verifies that every interval of level i fits inside
// exactly one interval of level i+1.
func checkCoarsening(field string, levels [][]Interval) error {
	for i := 0; i+1 < len(levels); i++ {
		fine, coarse := levels[i], levels[i+1]
		for _, fv := range fine {
			covered := false
			for _, cv := range coarse {
				if fv.Lo >= cv.Lo && fv.Hi <= cv.Hi {
					covered = true
					break
				}
			}
			if !covered {
				return &model.HierarchyInvalidError{
					Field: field,
					Reason: fmt.Sprintf("level %d interval %s is not contained in any level %d interval",
						i+1, fv.Token(), i+2),
				}
			}
		}
	}
	return nil
}

// SuppressionLevel returns L, the reserved suppression level.
func (t *Table) SuppressionLevel() int {
	return t.maxLevel
}

// Fields returns the field names in declaration order.
func (t *Table) Fields() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// HasField reports whether the table defines a hierarchy for the field.
func (t *Table) HasField(field string) bool {
	_, ok := t.fields[field]
	return ok
}

// Generalize returns the generalization token for a raw value of a field at
// a level in [0, L]. Level 0 is the identity; level L is suppression. A
// value outside every interval of a level takes the suppression token.
func (t *Table) Generalize(field string, value float64, level int) (string, error) {
	fl, ok := t.fields[field]
	if !ok {
		return "", model.NewConfigurationError("unknown hierarchy field %q", field)
	}
	if level < 0 || level > t.maxLevel {
		return "", model.NewConfigurationError("level %d out of range [0,%d] for field %q", level, t.maxLevel, field)
	}

	switch {
	case level == 0:
		return strconv.FormatFloat(value, 'g', -1, 64), nil
	case level == t.maxLevel:
		return SuppressedToken, nil
	}

	// A field shallower than the table's deepest one stays at its own
	// coarsest intervals until the suppression level.
	idx := level - 1
	if idx >= len(fl.levels) {
		idx = len(fl.levels) - 1
	}
	ivs := fl.levels[idx]

	// Intervals are sorted and disjoint by construction.
	pos := sort.Search(len(ivs), func(i int) bool { return ivs[i].Hi > value })
	if pos < len(ivs) && ivs[pos].Contains(value) {
		return ivs[pos].Token(), nil
	}
	return SuppressedToken, nil
}
