package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

var confidenceLabels = map[Confidence]string{
	ConfidenceLow:    "低",
	ConfidenceMedium: "中",
	ConfidenceHigh:   "高",
}

// Known reports whether the tier is one of low, medium or high.
func (c Confidence) Known() bool {
	_, ok := confidenceLabels[c]
	return ok
}

// Label returns the display label, or the raw value for unknown tiers.
func (c Confidence) Label() string {
	if label, ok := confidenceLabels[c]; ok {
		return label
	}
	return string(c)
}

// Rank orders tiers low < medium < high; unknown tiers sort first.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return 0
	}
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityLabels = map[Severity]string{
	SeverityCritical: "严重",
	SeverityHigh:     "高",
	SeverityMedium:   "中",
	SeverityLow:      "低",
	SeverityInfo:     "无危胁",
}

func (s Severity) Label() string {
	if label, ok := severityLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	default:
		return 0
	}
}

// Scalar keeps a JSON string or number verbatim. The API is not consistent
// about quoting coordinates, and exports have to reproduce what it sent.
type Scalar struct {
	raw json.RawMessage
}

func NewScalar(text string) Scalar {
	data, _ := json.Marshal(text)
	return Scalar{raw: data}
}

func (s Scalar) String() string {
	if len(s.raw) == 0 || bytes.Equal(s.raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(s.raw, &text); err == nil {
		return text
	}
	return string(s.raw)
}

func (s Scalar) IsZero() bool {
	return s.String() == ""
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if len(s.raw) == 0 {
		return []byte(`""`), nil
	}
	return s.raw, nil
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return fmt.Errorf("domain.Scalar: unsupported value %s", trimmed)
	}
	s.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

type Location struct {
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Province    string `json:"province"`
	City        string `json:"city"`
	Lat         Scalar `json:"lat"`
	Lng         Scalar `json:"lng"`
}

type Basic struct {
	Carrier  string   `json:"carrier"`
	Location Location `json:"location"`
}

type ASN struct {
	Number int    `json:"number"`
	Info   string `json:"info"`
	Rank   int    `json:"rank"`
}

type TagsClass struct {
	TagsType string   `json:"tags_type"`
	Tags     []string `json:"tags"`
}

type HistBehavior struct {
	Category string `json:"category"`
	TagName  string `json:"tag_name"`
	TagDesc  string `json:"tag_desc"`
}

type Evaluation struct {
	Active      string `json:"active"`
	HoneypotHit bool   `json:"honeypot_hit"`
}

// GeoFallback holds what the local GeoLite databases know about an IP. It is
// shown next to the API data but never counted, filtered on or exported.
type GeoFallback struct {
	Country     string
	CountryCode string
	ASNNumber   int
	ASNOrg      string
}

func (g GeoFallback) IsZero() bool {
	return g == GeoFallback{}
}

// ReputationRecord is the per-IP payload of an ip_reputation lookup. The
// IP field is not part of the payload; it is the key the record is stored under.
type ReputationRecord struct {
	IP              string         `json:"-"`
	IsMalicious     bool           `json:"is_malicious"`
	ConfidenceLevel Confidence     `json:"confidence_level"`
	Severity        Severity       `json:"severity"`
	Basic           Basic          `json:"basic"`
	ASN             ASN            `json:"asn"`
	Judgments       []string       `json:"judgments"`
	TagsClasses     []TagsClass    `json:"tags_classes"`
	HistBehavior    []HistBehavior `json:"hist_behavior"`
	UpdateTime      string         `json:"update_time"`
	Scene           string         `json:"scene"`
	Evaluation      Evaluation     `json:"evaluation"`

	Fallback GeoFallback `json:"-"`
}

// LocationLabel joins country, province and city the way the overview shows
// them. The city is left out when it repeats the province.
func (r ReputationRecord) LocationLabel() string {
	loc := r.Basic.Location
	parts := make([]string, 0, 3)
	if loc.Country != "" {
		parts = append(parts, loc.Country)
	}
	if loc.Province != "" {
		parts = append(parts, loc.Province)
	}
	if loc.City != "" && loc.City != loc.Province {
		parts = append(parts, loc.City)
	}
	return strings.Join(parts, " ")
}

func (r ReputationRecord) MaliciousLabel() string {
	if r.IsMalicious {
		return "是"
	}
	return "否"
}

func (r ReputationRecord) JudgmentsLabel() string {
	return strings.Join(r.Judgments, ", ")
}

func (r ReputationRecord) HasJudgment(judgment string) bool {
	for _, j := range r.Judgments {
		if strings.TrimSpace(j) == judgment {
			return true
		}
	}
	return false
}

// Detail renders the record as plain text for the detail pane.
func (r ReputationRecord) Detail() string {
	var b strings.Builder
	loc := r.Basic.Location

	fmt.Fprintf(&b, "IP: %s\n\n", r.IP)
	fmt.Fprintf(&b, "运营商: %s\n", orUnknown(r.Basic.Carrier))
	fmt.Fprintf(&b, "国家/地区: %s (%s)\n", orUnknown(loc.Country), loc.CountryCode)
	fmt.Fprintf(&b, "省份/城市: %s %s\n", loc.Province, loc.City)
	fmt.Fprintf(&b, "经纬度: %s, %s\n", loc.Lat, loc.Lng)

	if r.ASN.Number != 0 || r.ASN.Info != "" {
		fmt.Fprintf(&b, "\nASN: %d %s (rank %d/4)\n", r.ASN.Number, r.ASN.Info, r.ASN.Rank)
	}

	if fb := r.Fallback; !fb.IsZero() {
		b.WriteString("\nGeoLite:\n")
		if fb.Country != "" {
			fmt.Fprintf(&b, "  国家/地区: %s (%s)\n", fb.Country, fb.CountryCode)
		}
		if fb.ASNNumber != 0 {
			fmt.Fprintf(&b, "  ASN: %d %s\n", fb.ASNNumber, fb.ASNOrg)
		}
	}

	fmt.Fprintf(&b, "\n是否恶意: %s\n", r.MaliciousLabel())
	fmt.Fprintf(&b, "可信度: %s\n", r.ConfidenceLevel.Label())
	fmt.Fprintf(&b, "严重级别: %s\n", r.Severity.Label())

	if len(r.Judgments) > 0 {
		b.WriteString("\n判定威胁类型:\n")
		for _, j := range r.Judgments {
			fmt.Fprintf(&b, "  - %s\n", j)
		}
	}

	if len(r.TagsClasses) > 0 {
		b.WriteString("\n相关攻击团伙或安全事件:\n")
		for _, tc := range r.TagsClasses {
			fmt.Fprintf(&b, "  - %s: %s\n", tc.TagsType, strings.Join(tc.Tags, ", "))
		}
	}

	if len(r.HistBehavior) > 0 {
		b.WriteString("\n攻击行为:\n")
		for _, hb := range r.HistBehavior {
			fmt.Fprintf(&b, "  - %s: %s", hb.Category, hb.TagName)
			if hb.TagDesc != "" {
				fmt.Fprintf(&b, " - %s", hb.TagDesc)
			}
			b.WriteString("\n")
		}
	}

	if r.UpdateTime != "" {
		fmt.Fprintf(&b, "\n情报更新时间: %s\n", r.UpdateTime)
	}
	if r.Scene != "" {
		fmt.Fprintf(&b, "应用场景: %s\n", r.Scene)
	}
	if r.Evaluation.Active != "" || r.Evaluation.HoneypotHit {
		hit := "否"
		if r.Evaluation.HoneypotHit {
			hit = "是"
		}
		fmt.Fprintf(&b, "活跃度: %s\n蜜罐是否捕获: %s\n", r.Evaluation.Active, hit)
	}

	return b.String()
}

func orUnknown(value string) string {
	if value == "" {
		return "未知"
	}
	return value
}
