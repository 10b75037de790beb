package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

func sampleRows() []domain.ReputationRecord {
	return []domain.ReputationRecord{
		{
			IP:              "8.8.8.8",
			IsMalicious:     true,
			ConfidenceLevel: domain.ConfidenceHigh,
			Severity:        domain.SeverityCritical,
			Basic: domain.Basic{
				Carrier: "Google <LLC>",
				Location: domain.Location{
					Country: "美国", CountryCode: "US", Province: "加利福尼亚", City: "山景城",
					Lat: domain.NewScalar("37.4"), Lng: domain.NewScalar("-122.1"),
				},
			},
			ASN:        domain.ASN{Number: 15169, Info: "GOOGLE", Rank: 2},
			Judgments:  []string{"Scanner", "Zombie"},
			UpdateTime: "2024-01-01 00:00:00",
		},
		{
			IP:              "1.1.1.1",
			ConfidenceLevel: "unknown",
			Severity:        domain.SeverityInfo,
			Basic:           domain.Basic{Carrier: "电信", Location: domain.Location{Country: "中国", Province: "安徽", City: "安徽"}},
		},
	}
}

func TestWriteCSVDefaultEncoding(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows(), ""); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	if !bytes.HasPrefix(buf.Bytes(), []byte("\xef\xbb\xbf")) {
		t.Fatal("default encoding must start with a UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[3:])).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if !reflect.DeepEqual(records[0], ResultHeader) {
		t.Fatalf("header = %v", records[0])
	}

	want := []string{"8.8.8.8", "是", "高", "严重", "美国", "加利福尼亚", "山景城", "Google <LLC>", "Scanner, Zombie", "15169", "GOOGLE", "2024-01-01 00:00:00"}
	if !reflect.DeepEqual(records[1], want) {
		t.Fatalf("row = %v\nwant %v", records[1], want)
	}
	if records[2][1] != "否" || records[2][2] != "unknown" || records[2][3] != "无危胁" || records[2][9] != "" {
		t.Fatalf("second row = %v", records[2])
	}
}

func TestWriteCSVGB18030(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows(), EncodingGB18030); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(string(decoded), "IP地址,是否恶意") {
		t.Fatalf("decoded output = %q", string(decoded)[:40])
	}
	if bytes.Contains(buf.Bytes(), []byte("地址")) {
		t.Fatal("output still contains UTF-8 bytes")
	}
}

func TestWriteCSVRejectsUnknownEncoding(t *testing.T) {
	if err := WriteCSV(&bytes.Buffer{}, sampleRows(), "latin-9"); err == nil {
		t.Fatal("expected unsupported encoding error")
	}
}

type closeTracker struct {
	bytes.Buffer
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestEncodedWriterCloseFlushes(t *testing.T) {
	text := []byte("安徽,电信\n")

	for _, name := range []string{EncodingGB18030, EncodingGBK, EncodingUTF8BOM, EncodingUTF8} {
		t.Run(name, func(t *testing.T) {
			var sink closeTracker
			out, err := newEncodedWriter(&sink, name)
			if err != nil {
				t.Fatal(err)
			}
			// Split inside the first rune so the encoder has to hold bytes back.
			if _, err := out.Write(text[:2]); err != nil {
				t.Fatal(err)
			}
			if _, err := out.Write(text[2:]); err != nil {
				t.Fatal(err)
			}
			if err := out.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if sink.closed {
				t.Fatal("Close must not close the underlying writer")
			}

			got := sink.Bytes()
			switch name {
			case EncodingGB18030, EncodingGBK:
				decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(got)
				if err != nil {
					t.Fatal(err)
				}
				got = decoded
			case EncodingUTF8BOM:
				got = bytes.TrimPrefix(got, []byte("\xef\xbb\xbf"))
			}
			if !bytes.Equal(got, text) {
				t.Fatalf("output = %q, want %q", got, text)
			}
		})
	}
}

func TestWriteViewCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteViewCSV(&buf, sampleRows()[1:], EncodingUTF8); err != nil {
		t.Fatalf("WriteViewCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want header + 1", len(records))
	}
	want := []string{"1.1.1.1", "否", "unknown", "无危胁", "中国 安徽", "电信", ""}
	if !reflect.DeepEqual(records[1], want) {
		t.Fatalf("row = %v, want %v", records[1], want)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	rows := sampleRows()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rows); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	text := buf.String()
	if !strings.HasPrefix(text, "{\n    \"data\": {\n        \"8.8.8.8\": {") {
		t.Fatalf("unexpected layout:\n%s", text)
	}
	if !strings.Contains(text, "山景城") || !strings.Contains(text, "Google <LLC>") {
		t.Fatal("non-ASCII or HTML characters were escaped")
	}

	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d records, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i].IP != rows[i].IP {
			t.Fatalf("order changed: %s at %d", got[i].IP, i)
		}
		if got[i].Detail() != rows[i].Detail() {
			t.Fatalf("record %s changed:\n%s\nvs\n%s", rows[i].IP, got[i].Detail(), rows[i].Detail())
		}
	}
	if got[0].Basic.Location.Lat.String() != "37.4" {
		t.Fatalf("lat = %q", got[0].Basic.Location.Lat)
	}
}

func TestReadJSONErrors(t *testing.T) {
	cases := map[string]string{
		"no data":        `{"other": 1}`,
		"data not obj":   `{"data": []}`,
		"bad payload":    `{"data": {"8.8.8.8": "x"}}`,
		"not a document": `[]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadJSON(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	got, err := ReadJSON(strings.NewReader(`{"meta": {"x": 1}, "data": {}}`))
	if err != nil || len(got) != 0 {
		t.Fatalf("empty data = %v, %v", got, err)
	}
}

func TestWriteFileResolvesFormat(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteFile(filepath.Join(dir, "out"), FormatCSV, sampleRows(), "")
	if err != nil {
		t.Fatalf("WriteFile csv: %v", err)
	}
	if filepath.Ext(path) != ".csv" {
		t.Fatalf("path = %s, want .csv suffix", path)
	}

	jsonPath, err := WriteFile(filepath.Join(dir, "nested", "out.JSON"), FormatCSV, sampleRows(), "")
	if err != nil {
		t.Fatalf("WriteFile json: %v", err)
	}
	loaded, err := ReadFile(jsonPath)
	if err != nil || len(loaded) != 2 {
		t.Fatalf("ReadFile = %d records, %v", len(loaded), err)
	}

	viewPath, _ := ResolvePath(filepath.Join(dir, "view.json"), FormatViewCSV)
	if !strings.HasSuffix(viewPath, "view.json.csv") {
		t.Fatalf("view export path = %s", viewPath)
	}

	if _, err := WriteFile(filepath.Join(dir, "empty.csv"), FormatCSV, nil, ""); err == nil {
		t.Fatal("expected error for empty export")
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.csv")); !os.IsNotExist(err) {
		t.Fatal("empty export should not create a file")
	}
}
