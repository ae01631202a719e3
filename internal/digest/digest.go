// Package digest renders the recommendation email for a dining request.
package digest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"dining-concierge/internal/domain"
)

// Message is a rendered email.
type Message struct {
	Subject string
	Body    string
}

const recommendationsBody = `Hello!

Here are your personalized restaurant recommendations:

Cuisine: {{.Request.Cuisine}}
Location: {{.Request.Location}}
Date: {{.Request.Date}}
Dining Time: {{.Request.Time}}
Party Size: {{.Request.PartySize}}

Restaurant Recommendations:
{{range $i, $r := .Restaurants}}
{{inc $i}}. {{$r.Name}}
   Address: {{address $r}}
   Rating: {{rating $r.Rating}}/5 ({{$r.ReviewCount}} reviews)
   Phone: {{orNA $r.Phone}}
{{- if $r.Price}}
   Price: {{$r.Price}}
{{- end}}
{{- if $r.URL}}
   More info: {{$r.URL}}
{{- end}}
{{end}}
Enjoy your meal!

Best regards,
Your Dining Concierge
`

const noMatchesBody = `Hello!

I apologize, but I couldn't find any {{.Request.Cuisine}} restaurants in {{.Request.Location}} at this time.

Your request:
Date: {{.Request.Date}}
Dining Time: {{.Request.Time}}
Party Size: {{.Request.PartySize}}

Please try again with a different cuisine type.

Best regards,
Your Dining Concierge
`

var funcs = template.FuncMap{
	"inc":     func(i int) int { return i + 1 },
	"rating":  func(r float64) string { return strconv.FormatFloat(r, 'f', -1, 64) },
	"orNA":    orNA,
	"address": address,
}

var (
	recommendationsTmpl = template.Must(template.New("recommendations").Funcs(funcs).Parse(recommendationsBody))
	noMatchesTmpl       = template.Must(template.New("no_matches").Funcs(funcs).Parse(noMatchesBody))
)

type view struct {
	Request     domain.DiningRequest
	Restaurants []domain.RestaurantRecord
}

// Render builds the digest. An empty restaurant list renders the no-matches
// variant; it is not an error.
func Render(req domain.DiningRequest, restaurants []domain.RestaurantRecord) (Message, error) {
	tmpl := recommendationsTmpl
	subject := fmt.Sprintf("Your %s Restaurant Recommendations for %s", req.Cuisine, req.Location)
	if len(restaurants) == 0 {
		tmpl = noMatchesTmpl
		subject = "Restaurant Recommendations - No Results Found"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view{Request: req, Restaurants: restaurants}); err != nil {
		return Message{}, fmt.Errorf("digest: render %s: %w", tmpl.Name(), err)
	}
	return Message{Subject: subject, Body: buf.String()}, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func address(r domain.RestaurantRecord) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Address, r.City, r.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return orNA(strings.Join(parts, ", "))
}
