package tui

import (
	"fmt"
	"strings"

	ui "github.com/gizak/termui/v3"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/export"
	"github.com/tyB-or/weibu-ipSearch/internal/session"
	"github.com/tyB-or/weibu-ipSearch/internal/statistics"
)

// render refreshes every widget from the session and draws the grid.
func (d *Dashboard) render() {
	rows := d.session.Rows()

	d.header.Text = d.headerText()
	d.facets.Rows = facetLines(d.session.Facets(), d.opts.Geography, d.filterLine())
	d.fillTable(rows)
	d.fillGauge()
	d.detail.Text, d.detail.Title = d.detailText(rows)
	d.footer.Text, d.footer.TextStyle = d.footerText()

	if d.started {
		ui.Render(d.grid)
	}
}

func (d *Dashboard) headerText() string {
	s := d.session
	key := "未设置"
	if s.APIKey() != "" {
		key = maskKey(s.APIKey())
	}
	input := s.Input()
	if len([]rune(input)) > 80 {
		input = string([]rune(input)[:80]) + "..."
	}
	version := ""
	if d.opts.Version != "" {
		version = "  " + d.opts.Version
	}
	return fmt.Sprintf("API密钥: %s  语言: %s  今日查询总数: %d%s\nIP: %s", key, s.Lang(), s.DailyCount(), version, input)
}

func (d *Dashboard) filterLine() string {
	parts := []string{}
	if f := d.session.Filter(); f.Active() {
		parts = append(parts, "过滤 "+f.String())
	}
	if d.session.MaliciousOnly() {
		parts = append(parts, "仅恶意")
	}
	if column, dir, ok := d.session.SortState(); ok {
		parts = append(parts, "排序 "+string(column)+" "+dir.String())
	}
	return strings.Join(parts, "  ")
}

func facetLines(f statistics.FacetCounts, geo statistics.Geography, filter string) []string {
	home, country := "本地", "国内"
	if len(geo.RegionMarkers) > 0 {
		home = geo.RegionMarkers[0]
	}
	if len(geo.CountryMarkers) > 0 {
		country = geo.CountryMarkers[0]
	}

	lines := []string{
		fmt.Sprintf("总IP数: %d", f.Total),
		fmt.Sprintf("[恶意IP数: %d](fg:red)  [安全IP数: %d](fg:green)", f.Malicious, f.Safe),
		fmt.Sprintf("可信度: 高(%d) 中(%d) 低(%d)", f.ConfidenceHigh, f.ConfidenceMedium, f.ConfidenceLow),
		fmt.Sprintf("地理: %s(%d) %s其他(%d) 国外(%d)", home, f.Home, country, f.Domestic, f.Foreign),
		"运营商: " + labelCounts(f.Carriers),
		"判定类型: " + labelCounts(f.Judgments),
	}
	if filter != "" {
		lines = append(lines, "", filter)
	}
	return lines
}

func labelCounts(counts []statistics.LabelCount) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(counts))
	for _, lc := range counts {
		parts = append(parts, fmt.Sprintf("%s(%d)", lc.Label, lc.Count))
	}
	return strings.Join(parts, " ")
}

// fillTable shows the window of rows around the selection that fits.
func (d *Dashboard) fillTable(rows []domain.ReputationRecord) {
	capacity := d.table.Inner.Dy() - 1
	if capacity <= 0 {
		capacity = len(rows)
	}
	if d.selected < d.offset {
		d.offset = d.selected
	}
	if d.selected >= d.offset+capacity {
		d.offset = d.selected - capacity + 1
	}
	if d.offset > len(rows) {
		d.offset = 0
	}

	end := d.offset + capacity
	if end > len(rows) {
		end = len(rows)
	}

	d.table.Rows = [][]string{export.ViewHeader}
	d.table.RowStyles = map[int]ui.Style{0: ui.NewStyle(ui.ColorWhite, ui.ColorClear, ui.ModifierBold)}

	for i, rec := range rows[d.offset:end] {
		d.table.Rows = append(d.table.Rows, export.ViewRow(rec))
		style := ui.NewStyle(ui.ColorWhite)
		if rec.IsMalicious {
			style = ui.NewStyle(ui.ColorRed)
		}
		if d.offset+i == d.selected {
			style.Modifier = ui.ModifierReverse
		}
		d.table.RowStyles[i+1] = style
	}

	d.table.Title = fmt.Sprintf("查询结果 (%d/%d)", len(rows), d.session.Len())
}

func (d *Dashboard) fillGauge() {
	processed, total := d.session.Progress()
	percent := 0
	if total > 0 {
		percent = processed * 100 / total
	}
	d.gauge.Percent = percent
	d.gauge.Label = fmt.Sprintf("%d/%d (%d%%)", processed, total, percent)
}

func (d *Dashboard) detailText(rows []domain.ReputationRecord) (string, string) {
	switch d.pane {
	case paneJSON:
		raw := d.session.RawLog()
		if len(raw) == 0 {
			return "暂无响应", "JSON"
		}
		last := raw[len(raw)-1]
		return last.Body, "JSON (IP: " + last.IP + ")"
	case paneIPs:
		return strings.Join(d.session.VisibleIPs(), "\n"), "可见IP"
	}

	if d.selected < 0 || d.selected >= len(rows) {
		return "", "详情"
	}
	rec := rows[d.selected]
	return rec.Detail(), "详情: " + rec.IP
}

func (d *Dashboard) footerText() (string, ui.Style) {
	if d.prompt != nil {
		return d.prompt.text(), ui.NewStyle(ui.ColorYellow)
	}

	style := ui.NewStyle(ui.ColorWhite)
	switch d.status.Level {
	case session.LevelError:
		style = ui.NewStyle(ui.ColorRed)
	case session.LevelWarn:
		style = ui.NewStyle(ui.ColorYellow)
	}
	text := d.status.Text
	if d.session.Running() {
		text = "[查询中] " + text
	}
	return text, style
}
