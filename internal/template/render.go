// Package template substitutes the closed set of outreach placeholders in
// subject and body text. Rendering is pure and tolerates empty input.
package template

import (
	"regexp"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

// Vars holds every value a template may reference. Missing values render
// as empty strings.
type Vars struct {
	FirstName    string
	LastName     string
	Company      string
	Email        string
	Title        string
	CampaignName string
	Signature    string
}

// VarsFor assembles render variables from a recipient snapshot and its
// campaign. The signature comes from the tenant's mail integration and is
// empty when none is configured.
func VarsFor(p model.Prospect, c *model.Campaign, signature string) Vars {
	v := Vars{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Company:   p.Company,
		Email:     p.Email,
		Title:     p.Title,
		Signature: signature,
	}
	if c != nil {
		v.CampaignName = c.Name
	}
	return v
}

var placeholders = []struct {
	re  *regexp.Regexp
	get func(Vars) string
}{
	{regexp.MustCompile(`(?i)\{first_name\}`), func(v Vars) string { return v.FirstName }},
	{regexp.MustCompile(`(?i)\{last_name\}`), func(v Vars) string { return v.LastName }},
	{regexp.MustCompile(`(?i)\{company\}`), func(v Vars) string { return v.Company }},
	{regexp.MustCompile(`(?i)\{email\}`), func(v Vars) string { return v.Email }},
	{regexp.MustCompile(`(?i)\{title\}`), func(v Vars) string { return v.Title }},
	{regexp.MustCompile(`(?i)\{campaign_name\}`), func(v Vars) string { return v.CampaignName }},
	{regexp.MustCompile(`(?i)\{signature\}`), func(v Vars) string { return v.Signature }},
}

// Render replaces every known placeholder in text. Placeholder matching is
// case-insensitive. Text without placeholders passes through unchanged,
// including the empty string.
func Render(text string, v Vars) string {
	if text == "" {
		return text
	}
	for _, p := range placeholders {
		text = p.re.ReplaceAllLiteralString(text, p.get(v))
	}
	return text
}
