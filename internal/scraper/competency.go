package scraper

import (
	"errors"
	"fmt"
	"strings"
)

// Competency is the jurisdiction a case belongs to. It decides the upstream
// endpoints, the search form and the layout of the results table.
type Competency string

const (
	Supreme      Competency = "suprema"
	Appellate    Competency = "apelaciones"
	Civil        Competency = "civil"
	Labor        Competency = "laboral"
	Criminal     Competency = "penal"
	Collections  Competency = "cobranza"
	Family       Competency = "familia"
	Disciplinary Competency = "disciplinario"
)

// ErrUnknownCompetency is returned when a tag is not in the competency table.
var ErrUnknownCompetency = errors.New("unknown competency")

// DefaultCompetencies are searched by a bulk run when the caller names none.
var DefaultCompetencies = []Competency{Civil, Labor, Criminal, Collections, Family}

// column maps one results-table cell index onto a CaseSummary field.
type column struct {
	index int
	set   func(cs *CaseSummary, v string)
}

type competencySpec struct {
	searchPath string
	detailPath string
	tableID    string
	form       []formField
	columns    []column
}

var (
	rit          = func(cs *CaseSummary, v string) { cs.Rit = v }
	rol          = func(cs *CaseSummary, v string) { cs.Rol = v }
	ruc          = func(cs *CaseSummary, v string) { cs.Ruc = v }
	tribunal     = func(cs *CaseSummary, v string) { cs.Tribunal = v }
	caratulado   = func(cs *CaseSummary, v string) { cs.Caratulado = v }
	fechaIngreso = func(cs *CaseSummary, v string) { cs.FechaIngreso = v }
	estado       = func(cs *CaseSummary, v string) { cs.Estado = v }
	estadoCausa  = func(cs *CaseSummary, v string) { cs.EstadoCausa = v }
	estadoCuad   = func(cs *CaseSummary, v string) { cs.EstadoCuaderno = v }
	cuaderno     = func(cs *CaseSummary, v string) { cs.Cuaderno = v }
	institucion  = func(cs *CaseSummary, v string) { cs.Institucion = v }
)

// Rit, Tribunal, Caratulado, Fecha Ingreso, Estado Cuaderno, Cuaderno, Institución
var civilColumns = []column{
	{1, rit}, {2, tribunal}, {3, caratulado}, {4, fechaIngreso},
	{5, estadoCuad}, {6, cuaderno}, {7, institucion},
}

// Rit, Tribunal, Caratulado, Fecha Ingreso, Estado Causa, Institución
var laborColumns = []column{
	{1, rit}, {2, tribunal}, {3, caratulado}, {4, fechaIngreso},
	{5, estadoCausa}, {6, institucion},
}

// Rit, Ruc, Tribunal, Caratulado, Fecha Ingreso, Estado Causa, Institución
var criminalColumns = []column{
	{1, rit}, {2, ruc}, {3, tribunal}, {4, caratulado},
	{5, fechaIngreso}, {6, estadoCausa}, {7, institucion},
}

// Rol, Caratulado, Fecha Ingreso, Estado
var genericColumns = []column{
	{1, rol}, {2, caratulado}, {3, fechaIngreso}, {4, estado},
}

var competencies = map[Competency]competencySpec{
	Supreme:      genericSpec(Supreme, "Sup"),
	Appellate:    genericSpec(Appellate, "Ape"),
	Collections:  genericSpec(Collections, "Cob"),
	Family:       genericSpec(Family, "Fam"),
	Disciplinary: genericSpec(Disciplinary, "Disc"),
	Civil: {
		searchPath: searchPath(Civil),
		detailPath: detailPath(Civil),
		tableID:    "verDetalleMisCauCiv",
		form:       misCausasForm("Civ", "tipoMisCauCiv", "1"),
		columns:    civilColumns,
	},
	Labor: {
		searchPath: searchPath(Labor),
		detailPath: detailPath(Labor),
		tableID:    "verDetalleMisCauLab",
		form:       misCausasForm("Lab", "tipoMisCaulab", "1"),
		columns:    laborColumns,
	},
	Criminal: {
		searchPath: searchPath(Criminal),
		detailPath: detailPath(Criminal),
		tableID:    "verDetalleMisCauPen",
		form:       misCausasForm("Pen", "tipoMisCauPen", "2"),
		columns:    criminalColumns,
	},
}

func genericSpec(c Competency, tableSuffix string) competencySpec {
	name := c.title()
	return competencySpec{
		searchPath: searchPath(c),
		detailPath: detailPath(c),
		tableID:    "verDetalleMisCau" + tableSuffix,
		form: []formField{
			{key: "rol" + name, from: roleNumber},
			{key: "anho" + name, from: roleYear},
		},
		columns: genericColumns,
	}
}

func searchPath(c Competency) string {
	return fmt.Sprintf("/misCausas/%s/consultaMisCausas%s.php", c, c.title())
}

func detailPath(c Competency) string {
	return fmt.Sprintf("/misCausas/%s/modal/misCausas%s.php", c, c.title())
}

// ParseCompetency resolves a wire tag such as "laboral" into a Competency.
func ParseCompetency(s string) (Competency, error) {
	c := Competency(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCompetency, s)
	}
	return c, nil
}

// Valid reports whether c is one of the known competencies.
func (c Competency) Valid() bool {
	_, ok := competencies[c]
	return ok
}

func (c Competency) String() string {
	return string(c)
}

// title capitalizes the tag the way the portal names its fields and scripts.
func (c Competency) title() string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// AllCompetencies lists every known competency in a stable order.
func AllCompetencies() []Competency {
	return []Competency{Supreme, Appellate, Civil, Labor, Criminal, Collections, Family, Disciplinary}
}
