package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/export"
	"github.com/tyB-or/weibu-ipSearch/internal/session"
	"github.com/tyB-or/weibu-ipSearch/internal/statistics"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	maliciousStyle = cellStyle.Foreground(lipgloss.Color("9"))
)

// writeReport prints the visible rows as a table followed by the facet counts.
func writeReport(w io.Writer, s *session.Session) error {
	rows := s.Rows()
	if _, err := fmt.Fprintln(w, overviewTable(rows)); err != nil {
		return err
	}

	var b strings.Builder
	if f := s.Filter(); f.Active() {
		fmt.Fprintf(&b, "过滤条件: %s\n", f)
	}
	if s.MaliciousOnly() {
		b.WriteString("仅显示恶意IP\n")
	}
	if column, direction, ok := s.SortState(); ok {
		fmt.Fprintf(&b, "排序: %s %s\n", column, direction)
	}
	b.WriteString(facetSummary(s.Facets()))

	_, err := io.WriteString(w, b.String())
	return err
}

func overviewTable(rows []domain.ReputationRecord) string {
	data := make([][]string, 0, len(rows))
	for _, rec := range rows {
		data = append(data, export.ViewRow(rec))
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(export.ViewHeader...).
		Rows(data...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(rows) && rows[row].IsMalicious:
				return maliciousStyle
			default:
				return cellStyle
			}
		}).
		String()
}

func facetSummary(f statistics.FacetCounts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "总IP数: %d  恶意: %d  安全: %d\n", f.Total, f.Malicious, f.Safe)
	fmt.Fprintf(&b, "可信度: 高(%d) 中(%d) 低(%d)\n", f.ConfidenceHigh, f.ConfidenceMedium, f.ConfidenceLow)
	fmt.Fprintf(&b, "地理: 本地(%d) 国内(%d) 国外(%d)\n", f.Home, f.Domestic, f.Foreign)
	fmt.Fprintf(&b, "运营商: %s\n", joinCounts(f.Carriers))
	fmt.Fprintf(&b, "判定类型: %s\n", joinCounts(f.Judgments))
	return b.String()
}

func joinCounts(counts []statistics.LabelCount) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, len(counts))
	for i, lc := range counts {
		parts[i] = fmt.Sprintf("%s(%d)", lc.Label, lc.Count)
	}
	return strings.Join(parts, " ")
}
