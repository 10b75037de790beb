package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/export"
	"github.com/tyB-or/weibu-ipSearch/internal/jobs/query"
	"github.com/tyB-or/weibu-ipSearch/internal/session"
	"github.com/tyB-or/weibu-ipSearch/internal/view"
)

var errNoInput = errors.New("no IPs given: pass them as arguments, with -file, or use -load")

// runHeadless queries (or loads) once, prints the overview and facets to out
// and exports when asked to.
func runHeadless(ctx context.Context, s *session.Session, opts options, out io.Writer) error {
	switch {
	case opts.loadPath != "":
		notice, err := s.Load(opts.loadPath)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", opts.loadPath, err)
		}
		logNotice(notice)

	case opts.ips != "" || opts.inputFile != "":
		s.SetInput(opts.ips)
		if opts.inputFile != "" {
			if _, _, err := s.ImportFile(opts.inputFile); err != nil {
				return err
			}
		}
		events, err := s.StartQuery(ctx)
		if err != nil {
			return err
		}
		drain(s, events)

	default:
		return errNoInput
	}

	if err := applyView(s, opts); err != nil {
		return err
	}

	if err := writeReport(out, s); err != nil {
		return err
	}

	if opts.exportPath != "" {
		format := export.FormatCSV
		if opts.exportView {
			format = export.FormatViewCSV
		}
		path, err := s.Export(opts.exportPath, format)
		if err != nil {
			return fmt.Errorf("failed to export results: %w", err)
		}
		fmt.Fprintf(out, "\n已导出到 %s\n", path)
	}
	return nil
}

// drain applies every event on the calling goroutine until the job closes
// its channel. Cancelling the job's context ends it early.
func drain(s *session.Session, events <-chan query.Event) {
	for ev := range events {
		logNotice(s.Apply(ev))
	}
	if s.Running() {
		// The job exited without a done event, e.g. on interrupt.
		s.Apply(query.Event{Kind: query.EventDone, Reason: query.DoneStopped})
	}
}

func applyView(s *session.Session, opts options) error {
	if opts.filter != "" {
		filter, err := view.ParseFilter(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid -filter %q: %w", opts.filter, err)
		}
		if _, err := s.ApplyFacetFilter(filter.Category, filter.Value); err != nil {
			return fmt.Errorf("invalid -filter %q: %w", opts.filter, err)
		}
	}
	if opts.maliciousOnly {
		s.SetMaliciousOnly(true)
	}
	if opts.sort != "" {
		column, direction, err := view.ParseSort(opts.sort)
		if err != nil {
			return fmt.Errorf("invalid -sort %q: %w", opts.sort, err)
		}
		if err := s.Sort(column, direction); err != nil {
			return err
		}
	}
	return nil
}

func logNotice(n session.Notice) {
	if n.Empty() {
		return
	}
	switch n.Level {
	case session.LevelError:
		log.Error(n.Text)
	case session.LevelWarn:
		log.Warn(n.Text)
	default:
		log.Info(n.Text)
	}
}
