package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

type AggregationKind int

const (
	MissingData AggregationKind = iota + 1
	MissingIP
	Malformed
)

// AggregationError reports a response whose shape does not match what the
// queried IP needs. It is returned per IP and never stops a run.
type AggregationError struct {
	Kind AggregationKind
	IP   string
	Err  error
}

func (e *AggregationError) Error() string {
	switch e.Kind {
	case MissingData:
		return fmt.Sprintf("results: response for %s has no data block", e.IP)
	case MissingIP:
		return fmt.Sprintf("results: data block does not contain %s", e.IP)
	case Malformed:
		return fmt.Sprintf("results: payload for %s is malformed: %v", e.IP, e.Err)
	default:
		return fmt.Sprintf("results: cannot merge %s", e.IP)
	}
}

func (e *AggregationError) Unwrap() error { return e.Err }

// IsAggregationError reports whether err is an *AggregationError.
func IsAggregationError(err error) bool {
	var aggErr *AggregationError
	return errors.As(err, &aggErr)
}

// Enricher may fill gaps in a record before it is stored.
type Enricher interface {
	Enrich(record *domain.ReputationRecord)
}

// Set is the aggregate of one query run: records keyed by IP, iterated in
// the order the IPs were first merged. It is not safe for concurrent use;
// the foreground loop owns it.
type Set struct {
	order    []string
	records  map[string]domain.ReputationRecord
	enricher Enricher
}

func NewSet() *Set {
	return &Set{records: make(map[string]domain.ReputationRecord)}
}

func (s *Set) SetEnricher(enricher Enricher) {
	s.enricher = enricher
}

// Merge validates resp and stores the payload for ip, replacing any earlier
// record for the same IP in place.
func (s *Set) Merge(resp *domain.LookupResponse, ip string) error {
	ip = strings.TrimSpace(ip)
	if resp == nil || resp.Data == nil {
		return &AggregationError{Kind: MissingData, IP: ip}
	}

	payload, ok := resp.Data[ip]
	if !ok {
		return &AggregationError{Kind: MissingIP, IP: ip}
	}

	record, err := DecodeRecord(ip, payload)
	if err != nil {
		return &AggregationError{Kind: Malformed, IP: ip, Err: err}
	}

	s.Put(record)
	return nil
}

// DecodeRecord turns one per-IP payload into a record keyed by ip.
func DecodeRecord(ip string, payload json.RawMessage) (domain.ReputationRecord, error) {
	var record domain.ReputationRecord
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" || !strings.HasPrefix(trimmed, "{") {
		return record, errors.New("payload is not an object")
	}
	if err := json.Unmarshal(payload, &record); err != nil {
		return record, err
	}
	record.IP = ip
	return record, nil
}

// Put stores a record under its IP.
func (s *Set) Put(record domain.ReputationRecord) {
	if s.records == nil {
		s.records = make(map[string]domain.ReputationRecord)
	}
	if s.enricher != nil {
		s.enricher.Enrich(&record)
	}
	if _, exists := s.records[record.IP]; !exists {
		s.order = append(s.order, record.IP)
	}
	s.records[record.IP] = record
}

func (s *Set) Get(ip string) (domain.ReputationRecord, bool) {
	record, ok := s.records[ip]
	return record, ok
}

func (s *Set) Len() int { return len(s.order) }

func (s *Set) IPs() []string {
	return append([]string(nil), s.order...)
}

// Records returns a copy of all records in insertion order.
func (s *Set) Records() []domain.ReputationRecord {
	out := make([]domain.ReputationRecord, 0, len(s.order))
	for _, ip := range s.order {
		out = append(out, s.records[ip])
	}
	return out
}

func (s *Set) Reset() {
	s.order = nil
	s.records = make(map[string]domain.ReputationRecord)
}
