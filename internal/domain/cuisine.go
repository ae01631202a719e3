package domain

import "strings"

// Cuisine is one of the supported cuisine types.
type Cuisine string

const (
	CuisineItalian       Cuisine = "Italian"
	CuisineChinese       Cuisine = "Chinese"
	CuisineJapanese      Cuisine = "Japanese"
	CuisineMexican       Cuisine = "Mexican"
	CuisineIndian        Cuisine = "Indian"
	CuisineThai          Cuisine = "Thai"
	CuisineFrench        Cuisine = "French"
	CuisineAmerican      Cuisine = "American"
	CuisineMediterranean Cuisine = "Mediterranean"
	CuisineKorean        Cuisine = "Korean"
	CuisineVietnamese    Cuisine = "Vietnamese"
	CuisineSpanish       Cuisine = "Spanish"
	CuisineGreek         Cuisine = "Greek"
	CuisineLebanese      Cuisine = "Lebanese"
	CuisineEthiopian     Cuisine = "Ethiopian"
)

var supportedCuisines = []Cuisine{
	CuisineItalian, CuisineChinese, CuisineJapanese, CuisineMexican, CuisineIndian,
	CuisineThai, CuisineFrench, CuisineAmerican, CuisineMediterranean, CuisineKorean,
	CuisineVietnamese, CuisineSpanish, CuisineGreek, CuisineLebanese, CuisineEthiopian,
}

// SupportedCuisines returns the cuisine enumeration in display order.
func SupportedCuisines() []Cuisine {
	out := make([]Cuisine, len(supportedCuisines))
	copy(out, supportedCuisines)
	return out
}

// ParseCuisine matches s case-insensitively against the enumeration.
func ParseCuisine(s string) (Cuisine, bool) {
	s = strings.TrimSpace(s)
	for _, c := range supportedCuisines {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Key is the catalog index value for the cuisine.
func (c Cuisine) Key() string {
	return strings.ToLower(string(c))
}
