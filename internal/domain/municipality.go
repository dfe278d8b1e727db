package domain

import "strings"

// Municipality is an entry of the static name → IBGE geocode table.
type Municipality struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// GoiasMunicipalities is the selectable set for the single-municipality view.
var GoiasMunicipalities = []Municipality{
	{Code: "5208707", Name: "Goiânia"},
	{Code: "5201405", Name: "Aparecida de Goiânia"},
	{Code: "5201108", Name: "Anápolis"},
	{Code: "5211909", Name: "Jataí"},
	{Code: "5212501", Name: "Luziânia"},
	{Code: "5211503", Name: "Itumbiara"},
	{Code: "5211800", Name: "Jaraguá"},
	{Code: "5213103", Name: "Mineiros"},
	{Code: "5213806", Name: "Morrinhos"},
	{Code: "5217302", Name: "Pirenópolis"},
	{Code: "5218805", Name: "Rio Verde"},
	{Code: "5220454", Name: "Senador Canedo"},
	{Code: "5221403", Name: "Trindade"},
}

// LookupMunicipality resolves a municipality by name, ignoring case and
// surrounding whitespace.
func LookupMunicipality(name string) (Municipality, bool) {
	name = strings.TrimSpace(name)
	for _, m := range GoiasMunicipalities {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Municipality{}, false
}

// MunicipalityByCode resolves a municipality of the static table by IBGE code.
func MunicipalityByCode(code string) (Municipality, bool) {
	for _, m := range GoiasMunicipalities {
		if m.Code == code {
			return m, true
		}
	}
	return Municipality{}, false
}
