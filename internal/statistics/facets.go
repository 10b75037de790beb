package statistics

import (
	"sort"
	"strings"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

const DefaultTopN = 5

type Options struct {
	Geography Geography
	TopN      int
}

func DefaultOptions() Options {
	return Options{Geography: DefaultGeography(), TopN: DefaultTopN}
}

type LabelCount struct {
	Label string
	Count int
}

// FacetCounts is derived from a set of rows and never stored.
type FacetCounts struct {
	Total     int
	Malicious int
	Safe      int

	ConfidenceHigh   int
	ConfidenceMedium int
	ConfidenceLow    int

	Home     int
	Domestic int
	Foreign  int

	Carriers  []LabelCount
	Judgments []LabelCount
}

// Compute rescans rows and returns fresh counts. Zero-valued options fall back
// to the defaults.
func Compute(rows []domain.ReputationRecord, opts Options) FacetCounts {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if len(opts.Geography.CountryMarkers) == 0 {
		opts.Geography = DefaultGeography()
	}

	counts := FacetCounts{Total: len(rows)}
	carriers := newTally()
	judgments := newTally()

	for _, row := range rows {
		if row.IsMalicious {
			counts.Malicious++
		}

		switch row.ConfidenceLevel {
		case domain.ConfidenceHigh:
			counts.ConfidenceHigh++
		case domain.ConfidenceMedium:
			counts.ConfidenceMedium++
		case domain.ConfidenceLow:
			counts.ConfidenceLow++
		}

		switch opts.Geography.Classify(row.LocationLabel()) {
		case RegionHome:
			counts.Home++
		case RegionDomestic:
			counts.Domestic++
		case RegionForeign:
			counts.Foreign++
		}

		carriers.add(row.Basic.Carrier)
		for _, judgment := range row.Judgments {
			judgments.add(strings.TrimSpace(judgment))
		}
	}

	counts.Safe = counts.Total - counts.Malicious
	counts.Carriers = carriers.top(opts.TopN)
	counts.Judgments = judgments.top(opts.TopN)
	return counts
}

// tally counts labels and remembers the order they were first seen in.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	if label == "" {
		return
	}
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

func (t *tally) top(n int) []LabelCount {
	out := make([]LabelCount, 0, len(t.order))
	for _, label := range t.order {
		out = append(out, LabelCount{Label: label, Count: t.counts[label]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
