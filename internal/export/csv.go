package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

var (
	// ResultHeader is the column set of a full export.
	ResultHeader = []string{"IP地址", "是否恶意", "可信度", "严重程度", "国家", "省份", "城市", "运营商", "判定类型", "ASN号码", "ASN名称", "更新时间"}
	// ViewHeader matches the overview table.
	ViewHeader = []string{"IP地址", "是否恶意", "可信度", "严重程度", "地理位置", "运营商", "判定类型"}
)

func ResultRow(rec domain.ReputationRecord) []string {
	loc := rec.Basic.Location
	asnNumber := ""
	if rec.ASN.Number != 0 {
		asnNumber = strconv.Itoa(rec.ASN.Number)
	}
	return []string{
		rec.IP,
		rec.MaliciousLabel(),
		rec.ConfidenceLevel.Label(),
		rec.Severity.Label(),
		loc.Country,
		loc.Province,
		loc.City,
		rec.Basic.Carrier,
		rec.JudgmentsLabel(),
		asnNumber,
		rec.ASN.Info,
		rec.UpdateTime,
	}
}

func ViewRow(rec domain.ReputationRecord) []string {
	return []string{
		rec.IP,
		rec.MaliciousLabel(),
		rec.ConfidenceLevel.Label(),
		rec.Severity.Label(),
		rec.LocationLabel(),
		rec.Basic.Carrier,
		rec.JudgmentsLabel(),
	}
}

// WriteCSV writes the full column set for rows in the given encoding.
func WriteCSV(w io.Writer, rows []domain.ReputationRecord, encoding string) error {
	return writeTable(w, encoding, ResultHeader, rows, ResultRow)
}

// WriteViewCSV writes rows with the overview columns. Callers pass the
// visible rows only.
func WriteViewCSV(w io.Writer, rows []domain.ReputationRecord, encoding string) error {
	return writeTable(w, encoding, ViewHeader, rows, ViewRow)
}

func writeTable(w io.Writer, encoding string, header []string, rows []domain.ReputationRecord, row func(domain.ReputationRecord) []string) error {
	out, err := newEncodedWriter(w, encoding)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(header); err != nil {
		_ = out.Close()
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, rec := range rows {
		if err := writer.Write(row(rec)); err != nil {
			_ = out.Close()
			return fmt.Errorf("export: write row %s: %w", rec.IP, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = out.Close()
		return fmt.Errorf("export: flush csv: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("export: flush encoder: %w", err)
	}
	return nil
}
