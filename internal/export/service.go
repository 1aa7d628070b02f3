package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/entity"
	"github.com/docuscan/docuscan/internal/repository"
)

// Service is a tiny façade over the scan-record repository that produces XLSX
// bytes for exports.
type Service struct {
	scansRepo repository.ScanRecordRepository
	logger    *slog.Logger
}

func NewService(scansRepo repository.ScanRecordRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{scansRepo: scansRepo, logger: logger}
}

// ExportReviewedXLSX returns a workbook with the reviewed records of one
// organization. With a template, one column per schema field in schema order;
// without one, the union of extracted keys in sorted order.
func (s *Service) ExportReviewedXLSX(ctx context.Context, orgID string, tpl *entity.Template) ([]byte, error) {
	start := time.Now()

	status := constants.RecordReviewed
	recs, err := s.scansRepo.ListByOrg(ctx, orgID, &status)
	if err != nil {
		return nil, fmt.Errorf("query scan records: %w", err)
	}

	fieldKeys, fieldLabels := exportColumns(tpl, recs)

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defIndex, _ := f.GetSheetIndex("Sheet1"); defIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := append([]string{"Scan ID", "Template", "Reviewed By", "Reviewed At", "Storage Path"}, fieldLabels...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		reviewedBy := ""
		if r.ReviewedBy != nil {
			reviewedBy = *r.ReviewedBy
		}
		reviewedAt := ""
		if r.ReviewedAt != nil {
			reviewedAt = r.ReviewedAt.UTC().Format(time.RFC3339)
		}
		values := []any{r.ID, r.TemplateKey, reviewedBy, reviewedAt, r.StoragePath}
		for _, key := range fieldKeys {
			values = append(values, r.ExtractedData[key])
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.done",
		"org_id", orgID,
		"records", len(recs),
		"columns", len(headers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func exportColumns(tpl *entity.Template, recs []*entity.ScanRecord) (keys []string, labels []string) {
	if tpl != nil && !tpl.IsAutoDetect() {
		keys = tpl.FieldKeys()
		for _, fld := range tpl.Fields {
			labels = append(labels, fld.Label)
		}
		return keys, labels
	}

	seen := make(map[string]struct{})
	for _, r := range recs {
		for k := range r.ExtractedData {
			seen[k] = struct{}{}
		}
	}
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, append(labels, keys...)
}
