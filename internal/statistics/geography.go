package statistics

import "strings"

type Region string

const (
	RegionUnknown  Region = ""
	RegionHome     Region = "home"
	RegionDomestic Region = "domestic"
	RegionForeign  Region = "foreign"
)

// ParseRegion accepts the region names used by filters and flags.
func ParseRegion(value string) (Region, bool) {
	switch Region(strings.ToLower(strings.TrimSpace(value))) {
	case RegionHome:
		return RegionHome, true
	case RegionDomestic:
		return RegionDomestic, true
	case RegionForeign:
		return RegionForeign, true
	}
	return RegionUnknown, false
}

// Geography buckets location labels by substring markers. A label matching a
// country marker is domestic, and home when it also matches a region marker.
type Geography struct {
	CountryMarkers []string
	RegionMarkers  []string
}

func DefaultGeography() Geography {
	return Geography{
		CountryMarkers: []string{"中国", "China"},
		RegionMarkers:  []string{"安徽", "Anhui"},
	}
}

func (g Geography) Classify(label string) Region {
	if label == "" {
		return RegionUnknown
	}
	if !containsAny(label, g.CountryMarkers) {
		return RegionForeign
	}
	if containsAny(label, g.RegionMarkers) {
		return RegionHome
	}
	return RegionDomestic
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
