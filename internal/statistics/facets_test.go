package statistics

import (
	"reflect"
	"testing"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

func record(ip string, malicious bool, confidence domain.Confidence, country, province, city, carrier string, judgments ...string) domain.ReputationRecord {
	return domain.ReputationRecord{
		IP:              ip,
		IsMalicious:     malicious,
		ConfidenceLevel: confidence,
		Basic: domain.Basic{
			Carrier:  carrier,
			Location: domain.Location{Country: country, Province: province, City: city},
		},
		Judgments: judgments,
	}
}

func TestComputeCounts(t *testing.T) {
	rows := []domain.ReputationRecord{
		record("1.0.0.1", true, domain.ConfidenceHigh, "中国", "安徽", "合肥", "电信", "Scanner", "Zombie"),
		record("1.0.0.2", false, domain.ConfidenceLow, "中国", "北京", "北京", "联通", "Scanner"),
		record("1.0.0.3", true, domain.ConfidenceMedium, "United States", "California", "", "Google", "Spam"),
		record("1.0.0.4", false, "unknown", "", "", "", "", ""),
		record("1.0.0.5", true, domain.ConfidenceHigh, "China", "Anhui", "Hefei", "电信"),
	}

	got := Compute(rows, DefaultOptions())

	if got.Total != 5 || got.Malicious != 3 || got.Safe != 2 {
		t.Fatalf("totals = %d/%d/%d, want 5/3/2", got.Total, got.Malicious, got.Safe)
	}
	if got.ConfidenceHigh != 2 || got.ConfidenceMedium != 1 || got.ConfidenceLow != 1 {
		t.Fatalf("confidence = %d/%d/%d, want 2/1/1", got.ConfidenceHigh, got.ConfidenceMedium, got.ConfidenceLow)
	}
	if got.Home != 2 || got.Domestic != 1 || got.Foreign != 1 {
		t.Fatalf("geography = %d/%d/%d, want 2/1/1", got.Home, got.Domestic, got.Foreign)
	}

	wantCarriers := []LabelCount{{"电信", 2}, {"联通", 1}, {"Google", 1}}
	if !reflect.DeepEqual(got.Carriers, wantCarriers) {
		t.Fatalf("carriers = %v, want %v", got.Carriers, wantCarriers)
	}
	wantJudgments := []LabelCount{{"Scanner", 2}, {"Zombie", 1}, {"Spam", 1}}
	if !reflect.DeepEqual(got.Judgments, wantJudgments) {
		t.Fatalf("judgments = %v, want %v", got.Judgments, wantJudgments)
	}
}

func TestComputeIgnoresGeoFallback(t *testing.T) {
	rec := record("1.0.0.9", false, domain.ConfidenceLow, "", "", "", "")
	rec.Fallback = domain.GeoFallback{Country: "United States", CountryCode: "US", ASNNumber: 15169, ASNOrg: "GOOGLE"}

	got := Compute([]domain.ReputationRecord{rec}, DefaultOptions())

	if got.Home+got.Domestic+got.Foreign != 0 {
		t.Fatalf("empty API location was counted: home=%d domestic=%d foreign=%d", got.Home, got.Domestic, got.Foreign)
	}
	if len(got.Carriers) != 0 {
		t.Fatalf("carriers = %v, want none", got.Carriers)
	}
}

func TestComputeMaliciousPlusSafeIsTotal(t *testing.T) {
	var rows []domain.ReputationRecord
	for i := 0; i < 12; i++ {
		rows = append(rows, domain.ReputationRecord{IsMalicious: i%3 == 0})

		got := Compute(rows, Options{})
		if got.Malicious+got.Safe != got.Total {
			t.Fatalf("after %d rows: %d + %d != %d", i+1, got.Malicious, got.Safe, got.Total)
		}
	}

	empty := Compute(nil, Options{})
	if empty.Total != 0 || empty.Safe != 0 || len(empty.Carriers) != 0 {
		t.Fatalf("empty input produced %+v", empty)
	}
}

func TestTopNIsStableAndBounded(t *testing.T) {
	var rows []domain.ReputationRecord
	for _, carrier := range []string{"a", "b", "c", "d", "e", "f", "g", "g"} {
		rows = append(rows, domain.ReputationRecord{Basic: domain.Basic{Carrier: carrier}})
	}

	got := Compute(rows, DefaultOptions()).Carriers
	want := []LabelCount{{"g", 2}, {"a", 1}, {"b", 1}, {"c", 1}, {"d", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("carriers = %v, want %v", got, want)
	}
}

func TestGeographyClassify(t *testing.T) {
	geo := DefaultGeography()
	cases := []struct {
		label string
		want  Region
	}{
		{"中国 安徽 合肥", RegionHome},
		{"China Anhui", RegionHome},
		{"中国 上海", RegionDomestic},
		{"Japan Tokyo", RegionForeign},
		{"", RegionUnknown},
	}
	for _, tc := range cases {
		if got := geo.Classify(tc.label); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.label, got, tc.want)
		}
	}

	custom := Geography{CountryMarkers: []string{"Germany"}, RegionMarkers: []string{"Bavaria"}}
	if got := custom.Classify("Germany Bavaria Munich"); got != RegionHome {
		t.Fatalf("custom markers: got %q", got)
	}
	if got := custom.Classify("中国 安徽"); got != RegionForeign {
		t.Fatalf("custom markers should not use defaults, got %q", got)
	}
}

func TestParseRegion(t *testing.T) {
	if r, ok := ParseRegion(" Home "); !ok || r != RegionHome {
		t.Fatalf("ParseRegion(Home) = %q, %v", r, ok)
	}
	if _, ok := ParseRegion("mars"); ok {
		t.Fatal("ParseRegion accepted unknown region")
	}
}
