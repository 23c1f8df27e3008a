package scraper

import (
	"bytes"
	"strings"

	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/PuerkitoBio/goquery"
)

// minResultCells is the fewest cells a results row needs to count as a case.
const minResultCells = 4

// minMovementCells is the fewest cells a detail row needs to count as a movement.
const minMovementCells = 3

// DetailExtractor turns a parsed case-detail page into a CaseDetail.
type DetailExtractor func(doc *goquery.Document) CaseDetail

// Parser handles HTML parsing of the portal's responses
type Parser struct {
	logger  *logger.Logger
	details map[Competency]DetailExtractor
}

// NewParser creates a new parser instance
func NewParser(logger *logger.Logger) *Parser {
	return &Parser{
		logger:  logger,
		details: make(map[Competency]DetailExtractor),
	}
}

// RegisterDetailExtractor replaces the table-scanning heuristic for one competency.
func (p *Parser) RegisterDetailExtractor(c Competency, fn DetailExtractor) {
	p.details[c] = fn
}

// ParseSearchResults extracts one CaseSummary per data row of the competency's
// results container. The header row and rows with fewer than four cells are
// skipped. A missing container yields no results.
func (p *Parser) ParseSearchResults(html []byte, c Competency) []CaseSummary {
	results := []CaseSummary{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		p.logger.Error("Failed to parse search results", "competency", c, "error", err)
		return results
	}

	spec, ok := competencies[c]
	if !ok {
		spec = competencySpec{tableID: competencies[Civil].tableID, columns: genericColumns}
	}

	container := doc.Find("div#" + spec.tableID).First()
	if container.Length() == 0 {
		p.logger.Warn("Results table not found", "competency", c, "table_id", spec.tableID)
		return results
	}

	container.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < minResultCells {
			return
		}
		results = append(results, extractSummary(cells, spec.columns, c))
	})

	return results
}

func extractSummary(cells *goquery.Selection, columns []column, c Competency) CaseSummary {
	cs := CaseSummary{Competencia: c}
	for _, col := range columns {
		col.set(&cs, cellText(cells, col.index))
	}
	return cs
}

// cellText returns the trimmed text of the i-th cell, or "" past the end of the row.
func cellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(i).Text())
}

// ParseDetail extracts a CaseDetail from a case-detail page. Unless an
// extractor was registered for the competency, every table on the page is
// scanned and each non-header row with at least three cells becomes a movement.
func (p *Parser) ParseDetail(html []byte, c Competency) CaseDetail {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		p.logger.Error("Failed to parse case detail", "competency", c, "error", err)
		return newCaseDetail()
	}

	if fn, ok := p.details[c]; ok {
		return fn(doc)
	}
	return movementsFromTables(doc)
}

func movementsFromTables(doc *goquery.Document) CaseDetail {
	detail := newCaseDetail()

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(i int, row *goquery.Selection) {
			if i == 0 {
				return
			}
			cells := row.Find("td")
			if cells.Length() < minMovementCells {
				return
			}
			detail.HistorialMovimientos = append(detail.HistorialMovimientos, Movement{
				Fecha:       cellText(cells, 0),
				Descripcion: cellText(cells, 1),
				Tipo:        cellText(cells, 2),
			})
		})
	})

	return detail
}
