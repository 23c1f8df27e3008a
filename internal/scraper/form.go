package scraper

import "strings"

// FieldMap is a form-encoded request body.
type FieldMap map[string]string

// With returns a copy of m with key set to value.
func (m FieldMap) With(key, value string) FieldMap {
	out := make(FieldMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

type formSource int

const (
	literal formSource = iota
	roleNumber
	roleYear
)

type formField struct {
	key   string
	value string
	from  formSource
}

// baseForm is sent with every search regardless of competency.
var baseForm = []formField{{key: "tipCausaMisCau", value: "M"}}

// misCausasForm is the "Mis Causas" search form shared by the civil, labor and
// criminal portals. Only the key suffix, the casing of the "tipo" key and the
// default case state differ.
func misCausasForm(suffix, tipoKey, estadoCausa string) []formField {
	return []formField{
		{key: "rutMisCau" + suffix},
		{key: "dvMisCau" + suffix},
		{key: tipoKey, value: "0"},
		{key: "rolMisCau" + suffix, from: roleNumber},
		{key: "anhoMisCau" + suffix, from: roleYear},
		{key: "tipCausaMisCau" + suffix, value: "M"},
		{key: "estadoCausaMisCau" + suffix, value: estadoCausa},
		{key: "fecDesdeMisCau" + suffix},
		{key: "fecHastaMisCau" + suffix},
		{key: "nombreMisCau" + suffix},
		{key: "apePatMisCau" + suffix},
		{key: "apeMatMisCau" + suffix},
	}
}

// SplitRole splits "12345-2023" into ("12345", "2023"). A role without a
// separator is returned whole with an empty year.
func SplitRole(role string) (number, year string) {
	parts := strings.Split(role, "-")
	number = parts[0]
	if len(parts) > 1 {
		year = parts[1]
	}
	return number, year
}

// BuildForm produces the search payload the portal expects for a role in the
// given competency. Unknown competencies get the generic two-field form.
func BuildForm(role string, c Competency) FieldMap {
	number, year := SplitRole(role)

	fields := genericSpec(c, "").form
	if spec, ok := competencies[c]; ok {
		fields = spec.form
	}

	form := make(FieldMap, len(baseForm)+len(fields))
	for _, f := range append(append([]formField{}, baseForm...), fields...) {
		switch f.from {
		case roleNumber:
			form[f.key] = number
		case roleYear:
			form[f.key] = year
		default:
			form[f.key] = f.value
		}
	}
	return form
}
