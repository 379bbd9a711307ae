package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/ipedscomps/pkg/comps"
)

// ExportResult contains stats about the export
type ExportResult struct {
	CIP                  string    `json:"cip"`
	InstitutionsExported int       `json:"institutions_exported"`
	Format               string    `json:"format"`
	ExportedAt           time.Time `json:"exported_at"`
}

// ExportData is the JSON download: the lookup payload plus export metadata.
type ExportData struct {
	Metadata struct {
		ExportedAt       time.Time `json:"exported_at"`
		InstitutionCount int       `json:"institution_count"`
		Format           string    `json:"format"`
		Version          string    `json:"version"`
	} `json:"metadata"`
	comps.Response
}

// ExportToJSON writes resp as pretty JSON with export metadata
func ExportToJSON(w io.Writer, resp *comps.Response) (*ExportResult, error) {
	var data ExportData
	data.Response = *resp
	data.Metadata.ExportedAt = time.Now()
	data.Metadata.InstitutionCount = len(resp.Results)
	data.Metadata.Format = "json"
	data.Metadata.Version = "1.0"

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		CIP:                  resp.CIP,
		InstitutionsExported: len(resp.Results),
		Format:               "json",
		ExportedAt:           data.Metadata.ExportedAt,
	}, nil
}

// ExportToCSV writes resp as one CSV row per institution, with one column per
// registered year followed by the total
func ExportToCSV(w io.Writer, resp *comps.Response) (*ExportResult, error) {
	writer := csv.NewWriter(w)

	header := []string{"unitid", "instnm", "stabbr", "control", "carnegie", "webaddr"}
	for _, year := range resp.Years {
		header = append(header, strconv.Itoa(year))
	}
	header = append(header, "total")
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, res := range resp.Results {
		carnegie := ""
		if res.Carnegie != nil {
			carnegie = strconv.Itoa(*res.Carnegie)
		}
		row := []string{res.UnitID, res.Name, res.State, res.Control, carnegie, res.WebAddr}

		// Years without matching rows export as 0 so every row has the same width
		for _, year := range resp.Years {
			row = append(row, strconv.Itoa(res.Completions[year]))
		}
		row = append(row, strconv.Itoa(res.Total))

		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return &ExportResult{
		CIP:                  resp.CIP,
		InstitutionsExported: len(resp.Results),
		Format:               "csv",
		ExportedAt:           time.Now(),
	}, nil
}
