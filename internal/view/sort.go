package view

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

type Column string

const (
	ColumnIP         Column = "ip"
	ColumnMalicious  Column = "malicious"
	ColumnConfidence Column = "confidence"
	ColumnSeverity   Column = "severity"
	ColumnLocation   Column = "location"
	ColumnCarrier    Column = "carrier"
	ColumnJudgments  Column = "judgments"
)

// Columns lists the sortable columns in table order.
var Columns = []Column{
	ColumnIP, ColumnMalicious, ColumnConfidence, ColumnSeverity,
	ColumnLocation, ColumnCarrier, ColumnJudgments,
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseSort reads "column" or "column:desc".
func ParseSort(text string) (Column, Direction, error) {
	name, dir, _ := strings.Cut(strings.ToLower(strings.TrimSpace(text)), ":")
	column := Column(name)
	if compareFor(column) == nil {
		return "", Ascending, fmt.Errorf("view: unknown sort column %q", name)
	}
	switch dir {
	case "", "asc":
		return column, Ascending, nil
	case "desc":
		return column, Descending, nil
	default:
		return "", Ascending, fmt.Errorf("view: unknown sort direction %q", dir)
	}
}

type compareFunc func(a, b domain.ReputationRecord) int

func compareFor(column Column) compareFunc {
	switch column {
	case ColumnIP:
		return compareIP
	case ColumnMalicious:
		return func(a, b domain.ReputationRecord) int { return boolRank(a.IsMalicious) - boolRank(b.IsMalicious) }
	case ColumnConfidence:
		return func(a, b domain.ReputationRecord) int { return a.ConfidenceLevel.Rank() - b.ConfidenceLevel.Rank() }
	case ColumnSeverity:
		return func(a, b domain.ReputationRecord) int { return a.Severity.Rank() - b.Severity.Rank() }
	case ColumnLocation:
		return func(a, b domain.ReputationRecord) int { return strings.Compare(a.LocationLabel(), b.LocationLabel()) }
	case ColumnCarrier:
		return func(a, b domain.ReputationRecord) int { return strings.Compare(a.Basic.Carrier, b.Basic.Carrier) }
	case ColumnJudgments:
		return func(a, b domain.ReputationRecord) int { return strings.Compare(a.JudgmentsLabel(), b.JudgmentsLabel()) }
	}
	return nil
}

func compareIP(a, b domain.ReputationRecord) int {
	addrA, errA := netip.ParseAddr(a.IP)
	addrB, errB := netip.ParseAddr(b.IP)
	if errA != nil || errB != nil {
		return strings.Compare(a.IP, b.IP)
	}
	return addrA.Compare(addrB)
}

func boolRank(v bool) int {
	if v {
		return 1
	}
	return 0
}

// sortRows reorders rows in place. Equal keys keep their relative order in
// both directions.
func sortRows(rows []domain.ReputationRecord, column Column, dir Direction) {
	cmp := compareFor(column)
	if cmp == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if dir == Descending {
			return cmp(rows[i], rows[j]) > 0
		}
		return cmp(rows[i], rows[j]) < 0
	})
}
