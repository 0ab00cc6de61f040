// Package export formats a read timetable into downloadable CSV/PDF
// artifacts, reusing the generic Dataset-shaped renderers and signed-URL
// storage used elsewhere in the stack.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/pkg/export"
	"github.com/noah-isme/sma-adp-api/pkg/storage"
)

// Exporter renders published timetables to CSV/PDF and stores the result
// behind a signed, time-limited URL.
type Exporter struct {
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// New constructs an Exporter.
func New(storage *storage.LocalStorage, signer *storage.SignedURLSigner) *Exporter {
	return &Exporter{
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		storage: storage,
		signer:  signer,
	}
}

// Format selects the rendered artifact type.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Artifact describes one rendered, stored export.
type Artifact struct {
	Path      string
	Token     string
	ExpiresAt time.Time
}

// Export renders the given slot records to the requested format, persists
// them under storage, and returns a signed download reference.
func (e *Exporter) Export(jobID, partitionLabel string, records []dto.SlotRecord, format Format) (*Artifact, error) {
	dataset := toDataset(records)

	var (
		payload []byte
		err     error
		ext     string
	)
	switch format {
	case FormatCSV:
		payload, err = e.csv.Render(dataset)
		ext = "csv"
	case FormatPDF:
		payload, err = e.pdf.Render(dataset, "Timetable "+partitionLabel)
		ext = "pdf"
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("render timetable export: %w", err)
	}

	filename := fmt.Sprintf("timetable-%s-%s.%s", partitionLabel, jobID, ext)
	relPath, err := e.storage.Save(filename, payload)
	if err != nil {
		return nil, fmt.Errorf("store timetable export: %w", err)
	}

	token, expiresAt, err := e.signer.Generate(jobID, relPath)
	if err != nil {
		return nil, fmt.Errorf("sign timetable export url: %w", err)
	}

	return &Artifact{Path: relPath, Token: token, ExpiresAt: expiresAt}, nil
}

func toDataset(records []dto.SlotRecord) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Day", "Period", "Group", "Subject", "Teacher", "Room"},
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, r := range records {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Day":     r.Day,
			"Period":  strconv.Itoa(r.Period),
			"Group":   r.Group.Code,
			"Subject": r.Subject.Code,
			"Teacher": r.Teacher.Code,
			"Room":    r.Room.Code,
		})
	}
	return dataset
}
