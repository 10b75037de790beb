package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/export"
	"github.com/tyB-or/weibu-ipSearch/internal/jobs/query"
	"github.com/tyB-or/weibu-ipSearch/internal/results"
	"github.com/tyB-or/weibu-ipSearch/internal/settings"
	"github.com/tyB-or/weibu-ipSearch/internal/statistics"
	"github.com/tyB-or/weibu-ipSearch/internal/support"
	"github.com/tyB-or/weibu-ipSearch/internal/view"
)

var (
	ErrMissingAPIKey = errors.New("请输入API密钥")
	ErrNoValidIPs    = errors.New("未找到有效的公网IP地址")
	ErrQueryRunning  = errors.New("查询正在进行中")
	ErrNothingToSave = errors.New("没有可导出的数据")
)

// maxRawEntries bounds the JSON pane history.
const maxRawEntries = 200

type Options struct {
	Client     query.Lookuper
	Settings   *settings.Settings
	Lang       string
	Pace       time.Duration
	Statistics statistics.Options
	Enricher   results.Enricher
	Encoding   string
}

// RawEntry is one response body as shown in the JSON pane.
type RawEntry struct {
	IP   string
	Body string
}

// Session owns the result set, its view and the running job. All methods
// must be called from one goroutine; the job talks to it only through the
// events handed to Apply.
type Session struct {
	opts Options

	input    string
	apiKey   string
	remember bool

	set    *results.Set
	view   *view.View
	facets statistics.FacetCounts
	raw    []RawEntry

	job       *query.Job
	cancel    context.CancelFunc
	processed int
	total     int

	dailyCount int
}

func New(opts Options) *Session {
	if opts.Pace <= 0 {
		opts.Pace = query.DefaultPace
	}
	if opts.Encoding == "" {
		opts.Encoding = export.DefaultEncoding
	}
	if opts.Statistics.TopN <= 0 {
		opts.Statistics.TopN = statistics.DefaultTopN
	}
	if len(opts.Statistics.Geography.CountryMarkers) == 0 {
		opts.Statistics.Geography = statistics.DefaultGeography()
	}

	set := results.NewSet()
	if opts.Enricher != nil {
		set.SetEnricher(opts.Enricher)
	}

	s := &Session{
		opts: opts,
		set:  set,
		view: view.New(set, opts.Statistics.Geography),
	}
	s.refresh()
	return s
}

// LoadSettings reads the remembered API key and today's counter.
func (s *Session) LoadSettings(ctx context.Context) error {
	if s.opts.Settings == nil {
		return nil
	}

	key, err := s.opts.Settings.APIKey(ctx)
	if err != nil {
		return err
	}
	if key != "" && s.apiKey == "" {
		s.apiKey = key
		s.remember = true
	}

	count, err := s.opts.Settings.DailyCount(ctx)
	if err != nil {
		return err
	}
	s.dailyCount = count
	return nil
}

func (s *Session) Input() string { return s.input }

func (s *Session) SetInput(text string) { s.input = text }

func (s *Session) APIKey() string { return s.apiKey }

// SetAPIKey sets the key for the next query. With remember the key is
// persisted when the query starts.
func (s *Session) SetAPIKey(key string, remember bool) {
	s.apiKey = key
	s.remember = remember
}

func (s *Session) Lang() string { return s.opts.Lang }

func (s *Session) SetLang(lang string) { s.opts.Lang = lang }

func (s *Session) DailyCount() int { return s.dailyCount }

// ProcessInput replaces the input with the public IPs found in it.
func (s *Session) ProcessInput() ([]string, Notice) {
	ips := support.ExtractIPs(s.input)
	s.input = support.JoinIPs(ips)
	if len(ips) == 0 {
		return ips, warn("未找到有效公网IP")
	}
	return ips, info(fmt.Sprintf("成功提取 %d 个有效公网IP", len(ips)))
}

// ImportFile appends the file content to the input and re-extracts.
func (s *Session) ImportFile(path string) ([]string, Notice, error) {
	content, err := support.ReadTextFile(path)
	if err != nil {
		return nil, failed("导入文件失败"), fmt.Errorf("session: import %s: %w", path, err)
	}
	s.input = support.MergeInput(s.input, content)
	ips, notice := s.ProcessInput()
	log.Info("Imported input file", "path", path, "ips", len(ips))
	return ips, notice, nil
}

func (s *Session) Running() bool { return s.job != nil }

// Progress returns the last reported processed and total counts.
func (s *Session) Progress() (int, int) { return s.processed, s.total }

// StartQuery validates the input and starts a job. The returned channel must
// be drained and every event passed to Apply.
func (s *Session) StartQuery(ctx context.Context) (<-chan query.Event, error) {
	if s.Running() {
		return nil, ErrQueryRunning
	}

	ips, _ := s.ProcessInput()
	if s.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if len(ips) == 0 {
		return nil, ErrNoValidIPs
	}

	if s.remember && s.opts.Settings != nil {
		if err := s.opts.Settings.SetAPIKey(ctx, s.apiKey); err != nil {
			log.Warn("Failed to remember api key", "error", err)
		}
	}

	s.set.Reset()
	s.raw = nil
	s.refresh()

	targets := support.SplitInput(s.input)
	s.processed, s.total = 0, len(targets)

	if s.opts.Settings != nil {
		count, err := s.opts.Settings.AddQueries(ctx, len(targets))
		if err != nil {
			log.Warn("Failed to update daily query count", "error", err)
		} else {
			s.dailyCount = count
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	s.job = query.New(s.opts.Client, s.apiKey, targets, s.opts.Lang, query.WithPace(s.opts.Pace))
	s.cancel = cancel
	return s.job.Start(jobCtx), nil
}

// Stop asks the running job to finish after the current lookup.
func (s *Session) Stop() Notice {
	if s.job == nil {
		return Notice{}
	}
	s.job.Stop()
	return info("正在停止查询...")
}

// Apply folds one job event into the session.
func (s *Session) Apply(ev query.Event) Notice {
	switch ev.Kind {
	case query.EventRaw:
		s.appendRaw(ev.IP, ev.Response)
		return Notice{}

	case query.EventResult:
		if err := s.set.Merge(ev.Response, ev.IP); err != nil {
			log.Warn("Dropping result", "ip", ev.IP, "error", err)
			return failed(aggregationText(ev.IP, err))
		}
		s.refresh()
		return info(fmt.Sprintf("已获取 %s 的查询结果", ev.IP))

	case query.EventError:
		return warn(ev.Message)

	case query.EventProgress:
		s.processed, s.total = ev.Processed, ev.Total
		return info(progressText(ev.Processed, ev.Total))

	case query.EventLimit, query.EventFatal:
		return failed(ev.Message)

	case query.EventDone:
		s.processed = ev.Processed
		s.finish()
		switch ev.Reason {
		case query.DoneStopped:
			return info("查询已停止")
		case query.DoneLimit:
			return warn("查询已终止: API调用超出次数限制")
		case query.DoneFatal:
			return failed("查询已终止: 请求出错")
		default:
			return info("查询完成")
		}
	}
	return Notice{}
}

func (s *Session) finish() {
	if s.cancel != nil {
		s.cancel()
	}
	s.job = nil
	s.cancel = nil
}

func aggregationText(ip string, err error) string {
	var aggErr *results.AggregationError
	if errors.As(err, &aggErr) && aggErr.Kind == results.MissingIP {
		return fmt.Sprintf("IP %s 数据缺失", ip)
	}
	return fmt.Sprintf("IP %s 查询响应结构异常", ip)
}

func progressText(processed, total int) string {
	percent := 0
	if total > 0 {
		percent = processed * 100 / total
	}
	return fmt.Sprintf("查询进度: %d/%d (%d%%)", processed, total, percent)
}

func (s *Session) appendRaw(ip string, resp *domain.LookupResponse) {
	if resp == nil {
		return
	}
	body := resp.Raw
	if len(body) == 0 {
		body, _ = json.Marshal(resp)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "    "); err != nil {
		pretty.Reset()
		pretty.Write(body)
	}
	log.Debug("Raw response", "ip", ip, "body", pretty.String())

	s.raw = append(s.raw, RawEntry{IP: ip, Body: pretty.String()})
	if len(s.raw) > maxRawEntries {
		s.raw = s.raw[len(s.raw)-maxRawEntries:]
	}
}

func (s *Session) RawLog() []RawEntry {
	return append([]RawEntry(nil), s.raw...)
}

// refresh recomputes the facets over the visible rows.
func (s *Session) refresh() {
	s.facets = statistics.Compute(s.view.Visible(), s.opts.Statistics)
}

func (s *Session) Facets() statistics.FacetCounts { return s.facets }

// Rows returns the visible rows in display order.
func (s *Session) Rows() []domain.ReputationRecord { return s.view.Visible() }

func (s *Session) Len() int { return s.set.Len() }

func (s *Session) Record(ip string) (domain.ReputationRecord, bool) {
	return s.set.Get(ip)
}

// VisibleIPs lists the IPs of the visible rows.
func (s *Session) VisibleIPs() []string {
	rows := s.view.Visible()
	ips := make([]string, 0, len(rows))
	for _, rec := range rows {
		ips = append(ips, rec.IP)
	}
	return ips
}

func (s *Session) Filter() view.Filter { return s.view.Filter() }

func (s *Session) MaliciousOnly() bool { return s.view.MaliciousOnly() }

func (s *Session) SortState() (view.Column, view.Direction, bool) { return s.view.SortState() }

func (s *Session) ApplyFacetFilter(category view.Category, value string) (Notice, error) {
	if err := s.view.ApplyFacetFilter(category, value); err != nil {
		return failed(err.Error()), err
	}
	s.refresh()
	return info(fmt.Sprintf("已过滤显示 %d 个IP", s.facets.Total)), nil
}

func (s *Session) SetMaliciousOnly(on bool) Notice {
	s.view.SetMaliciousOnly(on)
	s.refresh()
	return info(fmt.Sprintf("显示 %d 个IP", s.facets.Total))
}

func (s *Session) ResetFilter() Notice {
	s.view.ResetFilter()
	s.refresh()
	return info(fmt.Sprintf("已重置过滤条件，显示 %d 个IP", s.facets.Total))
}

func (s *Session) Sort(column view.Column, direction view.Direction) error {
	return s.view.Sort(column, direction)
}

// Clear drops input, results, filters and the JSON pane.
func (s *Session) Clear() (Notice, error) {
	if s.Running() {
		return failed(ErrQueryRunning.Error()), ErrQueryRunning
	}
	s.input = ""
	s.set.Reset()
	s.view.Clear()
	s.raw = nil
	s.processed, s.total = 0, 0
	s.refresh()
	return info("已清除"), nil
}

// Export writes the whole result set, or only the visible rows for
// export.FormatViewCSV.
func (s *Session) Export(path string, format export.Format) (string, error) {
	rows := s.set.Records()
	if format == export.FormatViewCSV {
		rows = s.view.Visible()
	}
	if len(rows) == 0 {
		return "", ErrNothingToSave
	}
	return export.WriteFile(path, format, rows, s.opts.Encoding)
}

// Load replaces the results with a JSON export.
func (s *Session) Load(path string) (Notice, error) {
	if s.Running() {
		return failed(ErrQueryRunning.Error()), ErrQueryRunning
	}
	records, err := export.ReadFile(path)
	if err != nil {
		return failed("加载结果失败"), err
	}

	s.set.Reset()
	for _, rec := range records {
		s.set.Put(rec)
	}
	s.refresh()
	return info(fmt.Sprintf("已加载 %d 条结果", len(records))), nil
}
