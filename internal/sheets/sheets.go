// Package sheets mirrors the stored cases into a flat spreadsheet file.
package sheets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/database"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/natefinch/atomic"
)

const timeLayout = time.RFC3339

// Header is the fixed column order of the mirror.
var Header = table.Row{
	"Rol",
	"Caratulado",
	"Tribunal",
	"Fecha Ingreso",
	"Estado",
	"Competencia",
	"Última Actualización",
}

// Sink receives a full snapshot of the case table.
type Sink interface {
	Write(ctx context.Context, records []database.CaseRecord) error
}

// CSVSink replaces a CSV file atomically on every write, so readers only
// ever see a complete snapshot.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Path() string {
	return s.path
}

func (s *CSVSink) Write(ctx context.Context, records []database.CaseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	if err := atomic.WriteFile(s.path, strings.NewReader(Render(records)+"\n")); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Render returns the records as CSV, header first.
func Render(records []database.CaseRecord) string {
	t := table.NewWriter()
	t.AppendHeader(Header)
	for _, r := range records {
		t.AppendRow(Row(r))
	}
	return t.RenderCSV()
}

func Row(r database.CaseRecord) table.Row {
	updated := ""
	if !r.FechaActualizacion.IsZero() {
		updated = r.FechaActualizacion.Format(timeLayout)
	}
	return table.Row{
		r.Rol,
		r.Caratulado,
		r.Tribunal,
		r.FechaIngreso,
		r.Estado,
		r.Competencia,
		updated,
	}
}
