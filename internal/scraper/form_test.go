package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitRole(t *testing.T) {
	tests := []struct {
		role       string
		wantNumber string
		wantYear   string
	}{
		{"12345-2023", "12345", "2023"},
		{"1-2023", "1", "2023"},
		{"C-1500-2022", "C", "1500"},
		{"987", "987", ""},
		{"", "", ""},
		{"55-", "55", ""},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			number, year := SplitRole(tt.role)
			assert.Equal(t, tt.wantNumber, number)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}

func TestBuildFormCivil(t *testing.T) {
	form := BuildForm("12345-2023", Civil)

	assert.Equal(t, "M", form["tipCausaMisCau"])
	assert.Equal(t, "12345", form["rolMisCauCiv"])
	assert.Equal(t, "2023", form["anhoMisCauCiv"])
	assert.Equal(t, "0", form["tipoMisCauCiv"])
	assert.Equal(t, "1", form["estadoCausaMisCauCiv"])
	assert.Contains(t, form, "apeMatMisCauCiv")
	assert.Equal(t, "", form["rutMisCauCiv"])
}

func TestBuildFormLaborAndCriminal(t *testing.T) {
	labor := BuildForm("77-2021", Labor)
	assert.Equal(t, "77", labor["rolMisCauLab"])
	assert.Equal(t, "2021", labor["anhoMisCauLab"])
	assert.Equal(t, "0", labor["tipoMisCaulab"])
	assert.Equal(t, "1", labor["estadoCausaMisCauLab"])

	criminal := BuildForm("88-2020", Criminal)
	assert.Equal(t, "88", criminal["rolMisCauPen"])
	assert.Equal(t, "2", criminal["estadoCausaMisCauPen"])
}

func TestBuildFormGenericCompetencies(t *testing.T) {
	form := BuildForm("400-2019", Collections)
	assert.Equal(t, FieldMap{
		"tipCausaMisCau": "M",
		"rolCobranza":    "400",
		"anhoCobranza":   "2019",
	}, form)

	fam := BuildForm("12", Family)
	assert.Equal(t, "12", fam["rolFamilia"])
	assert.Equal(t, "", fam["anhoFamilia"])
}

func TestBuildFormNeverEmpty(t *testing.T) {
	for _, c := range append(AllCompetencies(), Competency("desconocida")) {
		t.Run(string(c), func(t *testing.T) {
			assert.NotEmpty(t, BuildForm("1-2023", c))
		})
	}
}

func TestFieldMapWithCopies(t *testing.T) {
	base := FieldMap{"a": "1"}
	paged := base.With("pagina", "2")

	assert.Equal(t, "2", paged["pagina"])
	assert.NotContains(t, base, "pagina")
}

func TestParseCompetency(t *testing.T) {
	c, err := ParseCompetency(" Laboral ")
	assert.NoError(t, err)
	assert.Equal(t, Labor, c)

	_, err = ParseCompetency("tributario")
	assert.ErrorIs(t, err, ErrUnknownCompetency)
}

func TestCompetencyPaths(t *testing.T) {
	assert.Equal(t, "/misCausas/civil/consultaMisCausasCivil.php", competencies[Civil].searchPath)
	assert.Equal(t, "/misCausas/laboral/modal/misCausasLaboral.php", competencies[Labor].detailPath)
	assert.Equal(t, "verDetalleMisCauDisc", competencies[Disciplinary].tableID)
}
