package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/statistics"
)

type Category string

const (
	CategoryMalicious  Category = "malicious"
	CategoryConfidence Category = "confidence"
	CategoryLocation   Category = "location"
	CategoryCarrier    Category = "carrier"
	CategoryJudgment   Category = "judgment"
)

var (
	ErrUnknownCategory = errors.New("view: unknown filter category")
	ErrInvalidValue    = errors.New("view: invalid filter value")
)

// Filter is one facet predicate. The zero value matches every row.
type Filter struct {
	Category Category
	Value    string
}

func (f Filter) Active() bool {
	return f.Category != ""
}

func (f Filter) String() string {
	if !f.Active() {
		return ""
	}
	return string(f.Category) + "=" + f.Value
}

// ParseFilter reads the "category=value" form used on the command line.
func ParseFilter(text string) (Filter, error) {
	category, value, ok := strings.Cut(text, "=")
	if !ok {
		return Filter{}, fmt.Errorf("%w: %q is not category=value", ErrInvalidValue, text)
	}
	return NewFilter(Category(strings.ToLower(strings.TrimSpace(category))), value)
}

// NewFilter validates value against category and normalizes it.
func NewFilter(category Category, value string) (Filter, error) {
	value = strings.TrimSpace(value)

	switch category {
	case CategoryMalicious:
		value = strings.ToLower(value)
		if value != "true" && value != "false" {
			return Filter{}, fmt.Errorf("%w: malicious=%s", ErrInvalidValue, value)
		}
	case CategoryConfidence:
		value = strings.ToLower(value)
		if !domain.Confidence(value).Known() {
			return Filter{}, fmt.Errorf("%w: confidence=%s", ErrInvalidValue, value)
		}
	case CategoryLocation:
		region, ok := statistics.ParseRegion(value)
		if !ok {
			return Filter{}, fmt.Errorf("%w: location=%s", ErrInvalidValue, value)
		}
		value = string(region)
	case CategoryCarrier, CategoryJudgment:
		if value == "" {
			return Filter{}, fmt.Errorf("%w: empty %s", ErrInvalidValue, category)
		}
	default:
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	return Filter{Category: category, Value: value}, nil
}

// Match tests the structured fields of rec, never display labels.
func (f Filter) Match(rec domain.ReputationRecord, geo statistics.Geography) bool {
	switch f.Category {
	case "":
		return true
	case CategoryMalicious:
		return rec.IsMalicious == (f.Value == "true")
	case CategoryConfidence:
		return string(rec.ConfidenceLevel) == f.Value
	case CategoryLocation:
		region := geo.Classify(rec.LocationLabel())
		return region != statistics.RegionUnknown && string(region) == f.Value
	case CategoryCarrier:
		return rec.Basic.Carrier == f.Value
	case CategoryJudgment:
		return rec.HasJudgment(f.Value)
	default:
		return false
	}
}
