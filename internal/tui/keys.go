package tui

import (
	"strings"

	"github.com/tyB-or/weibu-ipSearch/internal/export"
	"github.com/tyB-or/weibu-ipSearch/internal/session"
	"github.com/tyB-or/weibu-ipSearch/internal/statistics"
	"github.com/tyB-or/weibu-ipSearch/internal/threatbook"
	"github.com/tyB-or/weibu-ipSearch/internal/view"
)

const helpText = `g 开始查询  q 停止/退出  i 输入IP  o 导入文件  k API密钥(K 记住)  l 切换语言
m 仅恶意  1/2/3 可信度高/中/低  h/d/f 本地/国内其他/国外  c/j 轮换运营商/判定类型  r 重置过滤
s 切换排序列  S 切换排序方向  e 导出CSV  x 导出JSON  v 导出当前视图  L 加载JSON  C 清除
上/下 选择  Enter 详情  t 切换详情/JSON  p 可见IP列表`

// handleKey applies one key press and reports whether the dashboard should
// exit.
func (d *Dashboard) handleKey(id string) bool {
	if d.prompt != nil {
		if d.prompt.handle(id) {
			d.prompt = nil
		}
		return false
	}

	s := d.session
	switch id {
	case "q", "<C-c>":
		if s.Running() {
			d.notify(s.Stop())
			return false
		}
		return true
	case "g":
		d.startQuery()
	case "i":
		d.prompt = newPrompt("IP列表", s.Input(), func(text string) {
			s.SetInput(text)
			_, n := s.ProcessInput()
			d.notify(n)
		})
	case "o":
		d.prompt = newPrompt("导入文件", "", func(path string) {
			_, n, _ := s.ImportFile(strings.TrimSpace(path))
			d.notify(n)
		})
	case "k", "K":
		remember := id == "K"
		d.prompt = newPrompt("API密钥", s.APIKey(), func(key string) {
			s.SetAPIKey(strings.TrimSpace(key), remember)
			d.notify(session.Notice{Level: session.LevelInfo, Text: "API密钥已设置"})
		})
		d.prompt.masked = true
	case "l":
		if s.Lang() == threatbook.LangEN {
			s.SetLang(threatbook.LangZH)
		} else {
			s.SetLang(threatbook.LangEN)
		}
		d.notify(session.Notice{Level: session.LevelInfo, Text: "查询语言: " + s.Lang()})
	case "m":
		d.notify(s.SetMaliciousOnly(!s.MaliciousOnly()))
		d.clampSelection()
	case "1":
		d.applyFilter(view.CategoryConfidence, "high")
	case "2":
		d.applyFilter(view.CategoryConfidence, "medium")
	case "3":
		d.applyFilter(view.CategoryConfidence, "low")
	case "h":
		d.applyFilter(view.CategoryLocation, string(statistics.RegionHome))
	case "d":
		d.applyFilter(view.CategoryLocation, string(statistics.RegionDomestic))
	case "f":
		d.applyFilter(view.CategoryLocation, string(statistics.RegionForeign))
	case "c":
		d.cycleFacet(view.CategoryCarrier, func(f statistics.FacetCounts) []statistics.LabelCount { return f.Carriers })
	case "j":
		d.cycleFacet(view.CategoryJudgment, func(f statistics.FacetCounts) []statistics.LabelCount { return f.Judgments })
	case "r":
		d.cycle = nil
		d.notify(s.ResetFilter())
		d.clampSelection()
	case "s":
		d.sortIndex = (d.sortIndex + 1) % len(view.Columns)
		d.applySort()
	case "S":
		if d.sortDir == view.Ascending {
			d.sortDir = view.Descending
		} else {
			d.sortDir = view.Ascending
		}
		if d.sortIndex < 0 {
			d.sortIndex = 0
		}
		d.applySort()
	case "e":
		d.promptExport("导出CSV", export.FormatCSV, ".csv")
	case "x":
		d.promptExport("导出JSON", export.FormatJSON, ".json")
	case "v":
		d.promptExport("导出当前视图", export.FormatViewCSV, ".csv")
	case "L":
		d.prompt = newPrompt("加载JSON", "", func(path string) {
			n, _ := s.Load(strings.TrimSpace(path))
			d.notify(n)
			d.selected, d.offset = 0, 0
		})
	case "C":
		n, _ := s.Clear()
		d.notify(n)
		d.selected, d.offset, d.cycle = 0, 0, nil
	case "<Up>":
		if d.selected > 0 {
			d.selected--
		}
	case "<Down>":
		if d.selected < len(s.Rows())-1 {
			d.selected++
		}
	case "<Enter>", "t":
		if id == "t" && d.pane == paneDetail {
			d.pane = paneJSON
		} else {
			d.pane = paneDetail
		}
	case "p":
		d.pane = paneIPs
	case "?":
		d.notify(session.Notice{Level: session.LevelInfo, Text: strings.ReplaceAll(helpText, "\n", "  ")})
	}
	return false
}

func (d *Dashboard) applyFilter(category view.Category, value string) {
	d.cycle = nil
	n, _ := d.session.ApplyFacetFilter(category, value)
	d.notify(n)
	d.clampSelection()
}

// cycleFacet steps through the top labels captured when the cycle started,
// so narrowing the view does not shrink the list being cycled.
func (d *Dashboard) cycleFacet(category view.Category, labels func(statistics.FacetCounts) []statistics.LabelCount) {
	if d.session.Filter().Category != category || len(d.cycle) == 0 {
		d.cycle = d.cycle[:0]
		for _, lc := range labels(d.session.Facets()) {
			d.cycle = append(d.cycle, lc.Label)
		}
		d.cycleIdx = 0
	} else {
		d.cycleIdx = (d.cycleIdx + 1) % len(d.cycle)
	}

	if len(d.cycle) == 0 {
		d.notify(session.Notice{Level: session.LevelWarn, Text: "没有可用的过滤项"})
		return
	}
	n, _ := d.session.ApplyFacetFilter(category, d.cycle[d.cycleIdx])
	d.notify(n)
	d.clampSelection()
}

func (d *Dashboard) applySort() {
	column := view.Columns[d.sortIndex]
	if err := d.session.Sort(column, d.sortDir); err != nil {
		d.fail(err)
		return
	}
	d.notify(session.Notice{Level: session.LevelInfo, Text: "排序: " + string(column) + " " + d.sortDir.String()})
}

func (d *Dashboard) promptExport(label string, format export.Format, ext string) {
	d.prompt = newPrompt(label, d.defaultExportPath(ext), func(path string) {
		written, err := d.session.Export(strings.TrimSpace(path), format)
		if err != nil {
			d.notify(session.Notice{Level: session.LevelError, Text: "导出失败: " + err.Error()})
			return
		}
		d.notify(session.Notice{Level: session.LevelInfo, Text: "结果已成功导出到: " + written})
	})
}

func (d *Dashboard) clampSelection() {
	rows := len(d.session.Rows())
	if d.selected >= rows {
		d.selected = rows - 1
	}
	if d.selected < 0 {
		d.selected = 0
	}
}
