package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// headerAliases maps workbook column headings to record fields. Source
// systems export the same registry under different headings; matching is
// case-insensitive after trimming.
var headerAliases = map[string]string{
	"id":             "id",
	"asset id":       "id",
	"asset_id":       "id",
	"name":           "name",
	"asset name":     "name",
	"description":    "description",
	"notes":          "description",
	"data source":    "data_source",
	"data_source":    "data_source",
	"source":         "data_source",
	"source system":  "data_source",
	"condition":      "condition",
	"state":          "condition",
	"criticality":    "criticality",
	"risk":           "criticality",
	"category":       "category",
	"asset type":     "category",
	"type":           "category",
	"location":       "location",
	"zone":           "location",
	"age":            "age_years",
	"age years":      "age_years",
	"age_years":      "age_years",
	"install year":   "install_year",
	"install_year":   "install_year",
	"year installed": "install_year",
}

// ReadWorkbook parses the first sheet of an asset registry export. The
// first row must be a header; rows without an asset id are skipped.
func ReadWorkbook(r io.Reader) ([]domain.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidInput)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: workbook has no data rows", domain.ErrInvalidInput)
	}

	fields := make(map[int]string, len(rows[0]))
	for idx, heading := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(heading))
		if field, ok := headerAliases[key]; ok {
			fields[idx] = field
		}
	}
	if _, ok := indexOf(fields, "id"); !ok {
		return nil, fmt.Errorf("%w: workbook header has no asset id column", domain.ErrInvalidInput)
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := domain.Record{}
		for idx, field := range fields {
			if idx >= len(row) {
				continue
			}
			setField(&rec, field, strings.TrimSpace(row[idx]))
		}
		if rec.ID == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func indexOf(fields map[int]string, want string) (int, bool) {
	for idx, field := range fields {
		if field == want {
			return idx, true
		}
	}
	return 0, false
}

func setField(rec *domain.Record, field, value string) {
	if value == "" {
		return
	}
	switch field {
	case "id":
		rec.ID = value
	case "name":
		rec.Name = value
	case "description":
		rec.Description = value
	case "data_source":
		rec.DataSource = value
	case "condition":
		rec.Condition = value
	case "criticality":
		rec.Criticality = value
	case "category":
		rec.Category = value
	case "location":
		rec.Location = value
	case "age_years":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			rec.AgeYears = v
		}
	case "install_year":
		if v, err := strconv.Atoi(value); err == nil {
			rec.InstallYear = v
		}
	}
}
