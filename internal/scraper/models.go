package scraper

// CaseSummary is one row of a "Mis Causas" results table. Which fields are
// filled depends on the competency's column layout.
type CaseSummary struct {
	Rit            string     `json:"rit,omitempty"`
	Rol            string     `json:"rol,omitempty"`
	Ruc            string     `json:"ruc,omitempty"`
	Tribunal       string     `json:"tribunal,omitempty"`
	Caratulado     string     `json:"caratulado"`
	FechaIngreso   string     `json:"fecha_ingreso"`
	Estado         string     `json:"estado,omitempty"`
	EstadoCausa    string     `json:"estado_causa,omitempty"`
	EstadoCuaderno string     `json:"estado_cuaderno,omitempty"`
	Cuaderno       string     `json:"cuaderno,omitempty"`
	Institucion    string     `json:"institucion,omitempty"`
	Competencia    Competency `json:"competencia"`
}

// Key is the natural identifier of the case: the rit when the layout has one,
// the rol otherwise.
func (cs CaseSummary) Key() string {
	if cs.Rit != "" {
		return cs.Rit
	}
	return cs.Rol
}

// Status returns whichever status column the layout filled.
func (cs CaseSummary) Status() string {
	switch {
	case cs.EstadoCausa != "":
		return cs.EstadoCausa
	case cs.EstadoCuaderno != "":
		return cs.EstadoCuaderno
	default:
		return cs.Estado
	}
}

// Movement is one entry of a case's procedural history.
type Movement struct {
	Fecha       string `json:"fecha"`
	Descripcion string `json:"descripcion"`
	Tipo        string `json:"tipo"`
}

// Party is a litigant on a case. Detail extraction does not fill it yet.
type Party struct {
	Nombre string `json:"nombre"`
	Tipo   string `json:"tipo"`
}

// Document is a filing attached to a case. Detail extraction does not fill it yet.
type Document struct {
	Descripcion string `json:"descripcion"`
	URL         string `json:"url"`
}

// CaseDetail is what the case-detail modal yields.
type CaseDetail struct {
	HistorialMovimientos []Movement `json:"historial_movimientos"`
	Partes               []Party    `json:"partes"`
	Documentos           []Document `json:"documentos"`
}

func newCaseDetail() CaseDetail {
	return CaseDetail{
		HistorialMovimientos: []Movement{},
		Partes:               []Party{},
		Documentos:           []Document{},
	}
}

// Case is a summary with its detail merged in, when one was fetched.
type Case struct {
	CaseSummary
	*CaseDetail
}

// Merge overwrites the case's detail with d.
func (c *Case) Merge(d *CaseDetail) {
	if d == nil {
		return
	}
	cp := *d
	c.CaseDetail = &cp
}

// Movements returns the merged movement history, or nil when no detail was merged.
func (c Case) Movements() []Movement {
	if c.CaseDetail == nil {
		return nil
	}
	return c.HistorialMovimientos
}
