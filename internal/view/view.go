package view

import (
	"fmt"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/results"
	"github.com/tyB-or/weibu-ipSearch/internal/statistics"
)

// View is the filtered, sorted projection of a result set. Visibility is the
// active facet filter AND the malicious-only flag. Only one facet filter is
// held at a time.
type View struct {
	set       *results.Set
	geography statistics.Geography

	filter        Filter
	maliciousOnly bool

	sorted    bool
	column    Column
	direction Direction
}

func New(set *results.Set, geography statistics.Geography) *View {
	if len(geography.CountryMarkers) == 0 {
		geography = statistics.DefaultGeography()
	}
	return &View{set: set, geography: geography}
}

// ApplyFacetFilter replaces the current facet filter.
func (v *View) ApplyFacetFilter(category Category, value string) error {
	filter, err := NewFilter(category, value)
	if err != nil {
		return err
	}
	v.filter = filter
	return nil
}

func (v *View) Filter() Filter { return v.filter }

// SetMaliciousOnly toggles the malicious predicate. Turning it off leaves the
// facet filter in place.
func (v *View) SetMaliciousOnly(on bool) {
	v.maliciousOnly = on
}

func (v *View) MaliciousOnly() bool { return v.maliciousOnly }

// ResetFilter drops the facet filter. Malicious-only stays as it was.
func (v *View) ResetFilter() {
	v.filter = Filter{}
}

func (v *View) Sort(column Column, direction Direction) error {
	if compareFor(column) == nil {
		return fmt.Errorf("view: unknown sort column %q", column)
	}
	v.sorted = true
	v.column = column
	v.direction = direction
	return nil
}

// SortState returns the active sort, if any.
func (v *View) SortState() (Column, Direction, bool) {
	return v.column, v.direction, v.sorted
}

// Visible returns the rows that pass the filters, in display order.
func (v *View) Visible() []domain.ReputationRecord {
	if v.set == nil {
		return nil
	}

	all := v.set.Records()
	rows := all[:0]
	for _, rec := range all {
		if v.visible(rec) {
			rows = append(rows, rec)
		}
	}

	if v.sorted {
		sortRows(rows, v.column, v.direction)
	}
	return rows
}

func (v *View) visible(rec domain.ReputationRecord) bool {
	if v.maliciousOnly && !rec.IsMalicious {
		return false
	}
	return v.filter.Match(rec, v.geography)
}

// Clear drops filters and sort order.
func (v *View) Clear() {
	v.filter = Filter{}
	v.maliciousOnly = false
	v.sorted = false
	v.column = ""
	v.direction = Ascending
}
