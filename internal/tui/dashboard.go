package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/jobs/query"
	"github.com/tyB-or/weibu-ipSearch/internal/session"
	"github.com/tyB-or/weibu-ipSearch/internal/statistics"
	"github.com/tyB-or/weibu-ipSearch/internal/view"
)

type Options struct {
	Geography statistics.Geography
	ExportDir string
	Version   string
}

type pane int

const (
	paneDetail pane = iota
	paneJSON
	paneIPs
)

// Dashboard is the terminal front-end. It owns the session: keyboard input
// and job events are handled on the same loop.
type Dashboard struct {
	session *session.Session
	opts    Options
	ctx     context.Context
	events  <-chan query.Event

	selected  int
	offset    int
	sortIndex int
	sortDir   view.Direction
	cycle     []string
	cycleIdx  int
	pane      pane
	status    session.Notice
	prompt    *prompt

	header  *widgets.Paragraph
	facets  *widgets.List
	table   *widgets.Table
	gauge   *widgets.Gauge
	detail  *widgets.Paragraph
	footer  *widgets.Paragraph
	grid    *ui.Grid
	started bool
}

func New(s *session.Session, opts Options) *Dashboard {
	if len(opts.Geography.CountryMarkers) == 0 {
		opts.Geography = statistics.DefaultGeography()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "exports"
	}

	d := &Dashboard{session: s, opts: opts, sortIndex: -1, ctx: context.Background()}

	d.header = widgets.NewParagraph()
	d.header.Title = "微步IP信誉批量查询"
	d.header.BorderStyle.Fg = ui.ColorCyan

	d.facets = widgets.NewList()
	d.facets.Title = "统计"
	d.facets.BorderStyle.Fg = ui.ColorGreen
	d.facets.WrapText = false

	d.table = widgets.NewTable()
	d.table.Title = "查询结果"
	d.table.RowSeparator = false
	d.table.FillRow = true
	d.table.BorderStyle.Fg = ui.ColorCyan

	d.gauge = widgets.NewGauge()
	d.gauge.Title = "查询进度"
	d.gauge.BarColor = ui.ColorGreen

	d.detail = widgets.NewParagraph()
	d.detail.Title = "详情"
	d.detail.BorderStyle.Fg = ui.ColorYellow

	d.footer = widgets.NewParagraph()
	d.footer.Title = "状态"

	d.grid = ui.NewGrid()
	d.grid.Set(
		ui.NewRow(0.12, d.header),
		ui.NewRow(0.53,
			ui.NewCol(0.3, d.facets),
			ui.NewCol(0.7, d.table),
		),
		ui.NewRow(0.07, d.gauge),
		ui.NewRow(0.18, d.detail),
		ui.NewRow(0.10, d.footer),
	)

	d.status = session.Notice{Level: session.LevelInfo, Text: "按 i 输入IP, k 设置API密钥, g 开始查询, ? 查看帮助"}
	return d
}

// Run takes over the terminal until the user quits or ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("failed to initialize termui: %w", err)
	}
	defer ui.Close()

	d.ctx = ctx
	d.started = true
	width, height := ui.TerminalDimensions()
	d.grid.SetRect(0, 0, width, height)
	d.render()

	uiEvents := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			d.session.Stop()
			return nil

		case e := <-uiEvents:
			switch e.Type {
			case ui.ResizeEvent:
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
			case ui.KeyboardEvent:
				if d.handleKey(e.ID) {
					return nil
				}
			}

		case ev, ok := <-d.events:
			if !ok {
				d.events = nil
				break
			}
			d.notify(d.session.Apply(ev))
		}

		d.render()
	}
}

func (d *Dashboard) notify(n session.Notice) {
	if n.Empty() {
		return
	}
	d.status = n
	switch n.Level {
	case session.LevelError:
		log.Error(n.Text)
	case session.LevelWarn:
		log.Warn(n.Text)
	default:
		log.Debug(n.Text)
	}
}

func (d *Dashboard) fail(err error) {
	d.notify(session.Notice{Level: session.LevelError, Text: err.Error()})
}

func (d *Dashboard) startQuery() {
	events, err := d.session.StartQuery(d.ctx)
	if err != nil {
		d.fail(err)
		return
	}
	d.events = events
	d.selected, d.offset = 0, 0
	d.notify(session.Notice{Level: session.LevelInfo, Text: "正在查询中..."})
}

func (d *Dashboard) defaultExportPath(ext string) string {
	name := fmt.Sprintf("ipsearch_%s%s", time.Now().Format("20060102_150405"), ext)
	return filepath.Join(d.opts.ExportDir, name)
}
