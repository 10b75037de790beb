package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/threatbook"
)

// DefaultPace is the gap between two lookups.
const DefaultPace = 500 * time.Millisecond

const eventBuffer = 64

type Lookuper interface {
	Lookup(ctx context.Context, apiKey, ip, lang string) (*domain.LookupResponse, error)
}

type Option func(*Job)

func WithPace(pace time.Duration) Option {
	return func(j *Job) {
		if pace >= 0 {
			j.pace = pace
		}
	}
}

// Job walks its targets one by one. It is single use.
type Job struct {
	client  Lookuper
	apiKey  string
	lang    string
	targets []string
	pace    time.Duration

	events    chan Event
	started   atomic.Bool
	stopped   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	processed atomic.Int64
}

func New(client Lookuper, apiKey string, targets []string, lang string, opts ...Option) *Job {
	j := &Job{
		client:  client,
		apiKey:  apiKey,
		lang:    lang,
		targets: append([]string(nil), targets...),
		pace:    DefaultPace,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.events = make(chan Event, eventBuffer)
	return j
}

func (j *Job) Events() <-chan Event { return j.events }

func (j *Job) Total() int { return len(j.targets) }

func (j *Job) Processed() int { return int(j.processed.Load()) }

// Stop asks the loop to exit before its next lookup. A call in flight is
// allowed to finish.
func (j *Job) Stop() {
	j.stopped.Store(true)
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *Job) Stopped() bool { return j.stopped.Load() }

// Start runs the job on its own goroutine and returns the event stream.
func (j *Job) Start(ctx context.Context) <-chan Event {
	go j.Run(ctx)
	return j.events
}

// Run drives the loop on the calling goroutine. The event channel is closed
// when it returns, right after the EventDone notice.
func (j *Job) Run(ctx context.Context) {
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	defer close(j.events)

	if ctx == nil {
		ctx = context.Background()
	}

	total := len(j.targets)
	reason := DoneCompleted
	log.Info("Query started", "targets", total)

loop:
	for _, raw := range j.targets {
		if j.stopped.Load() || ctx.Err() != nil {
			reason = DoneStopped
			break
		}

		ip := strings.TrimSpace(raw)
		if ip == "" {
			continue
		}

		resp, err := j.client.Lookup(ctx, j.apiKey, ip, j.lang)
		switch {
		case err != nil && errors.Is(err, threatbook.ErrMalformedBody):
			j.emit(ctx, Event{Kind: EventError, IP: ip, Err: err, Message: fmt.Sprintf("查询IP %s 错误: 响应无法解析", ip)})
		case err != nil && ctx.Err() != nil:
			reason = DoneStopped
			break loop
		case err != nil:
			log.Error("Query aborted", "ip", ip, "error", err)
			j.emit(ctx, Event{Kind: EventFatal, IP: ip, Err: err, Message: fmt.Sprintf("请求出错: %v", err)})
			reason = DoneFatal
			break loop
		default:
			j.emit(ctx, Event{Kind: EventRaw, IP: ip, Response: resp})

			switch {
			case resp.ResponseCode == domain.ResponseCodeOK && resp.HasData():
				j.emit(ctx, Event{Kind: EventResult, IP: ip, Response: resp})
			case resp.ResponseCode == domain.ResponseCodeLimitReach:
				log.Warn("API limit reached", "ip", ip, "message", resp.VerboseMsg)
				j.emit(ctx, Event{Kind: EventLimit, IP: ip, Response: resp, Message: fmt.Sprintf("API调用超出次数限制: %s", resp.VerboseMsg)})
				reason = DoneLimit
				break loop
			default:
				msg := resp.VerboseMsg
				if msg == "" {
					msg = "未知错误"
				}
				j.emit(ctx, Event{Kind: EventError, IP: ip, Response: resp, Message: fmt.Sprintf("查询IP %s 错误: %s", ip, msg)})
			}
		}

		processed := int(j.processed.Add(1))
		j.emit(ctx, Event{Kind: EventProgress, Processed: processed, Total: total})

		j.sleep(ctx)
	}

	if reason == DoneCompleted && j.stopped.Load() {
		reason = DoneStopped
	}

	log.Info("Query finished", "reason", reason, "processed", j.Processed(), "total", total)
	j.emit(ctx, Event{Kind: EventDone, Reason: reason, Processed: j.Processed(), Total: total})
}

func (j *Job) emit(ctx context.Context, ev Event) {
	select {
	case j.events <- ev:
	case <-ctx.Done():
		// Nobody is left to read once the context is gone; fall back to
		// a non-blocking send so buffered space is still used.
		select {
		case j.events <- ev:
		default:
		}
	}
}

func (j *Job) sleep(ctx context.Context) {
	if j.pace <= 0 {
		return
	}
	timer := time.NewTimer(j.pace)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-j.stopCh:
	case <-ctx.Done():
	}
}
