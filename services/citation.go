package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"arxiv-frontend/models"
)

var (
	acronymRe = regexp.MustCompile(`[A-Z]{2,}`)
	versionRe = regexp.MustCompile(`v\d+$`)
)

// ProtectCapitals schützt Großbuchstaben im Titel vor dem Kleinschreiben durch BibTeX.
// Beispiel: "RNA-Binding Proteins" -> "{RNA}-{B}inding {P}roteins"
func ProtectCapitals(title string) string {
	result := acronymRe.ReplaceAllString(title, "{$0}")
	result = wrapCapitalsAfter(result, func(prev byte) bool { return prev >= 'a' && prev <= 'z' })
	// Wortanfänge nach Leerzeichen zählen wie nach Bindestrich oder Slash,
	// nur der erste Buchstabe des Titels bleibt ungeschützt.
	result = wrapCapitalsAfter(result, func(prev byte) bool {
		return prev == '-' || prev == '/' || prev == ' ' || prev == '\t'
	})
	return result
}

// wrapCapitalsAfter klammert jedes A-Z ein, dessen Vorgänger die Bedingung erfüllt.
func wrapCapitalsAfter(s string, after func(prev byte) bool) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' && i > 0 && after(s[i-1]) {
			b.WriteByte('{')
			b.WriteByte(c)
			b.WriteByte('}')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// CleanArxivID entfernt ein Versions-Suffix wie "v2".
func CleanArxivID(id string) string {
	return versionRe.ReplaceAllString(id, "")
}

// CitationKey bildet den Schlüssel aus Nachname des Erstautors, Jahr und "x".
func CitationKey(authors []string, year int) string {
	if len(authors) > 0 {
		if fields := strings.Fields(authors[0]); len(fields) > 0 {
			last := strings.Map(func(r rune) rune {
				if unicode.IsLetter(r) || unicode.IsDigit(r) {
					return r
				}
				return -1
			}, fields[len(fields)-1])
			return fmt.Sprintf("%s%dx", last, year)
		}
	}
	return fmt.Sprintf("arxiv%dx", year)
}

// BibTeX rendert den arXiv-Eintrag eines Papers. p.Authors muss befüllt sein.
func BibTeX(p *models.Paper) string {
	year := p.PublishedDate.Year()
	cleanID := CleanArxivID(p.ArxivID)

	authors := "Unknown"
	if len(p.Authors) > 0 {
		authors = strings.Join(p.Authors, " and ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@article{%s,\n", CitationKey(p.Authors, year))
	fmt.Fprintf(&b, "Author = {%s},\n", authors)
	fmt.Fprintf(&b, "Title = {%s},\n", ProtectCapitals(p.Title))
	fmt.Fprintf(&b, "Year = {%d},\n", year)
	fmt.Fprintf(&b, "Eprint = {%s},\n", cleanID)
	fmt.Fprintf(&b, "  url = {https://arxiv.org/abs/%s},\n", cleanID)
	b.WriteString("journal = {arXiv e-prints}")
	if p.JournalRef != nil && *p.JournalRef != "" {
		fmt.Fprintf(&b, ",\njournalref = {%s}", *p.JournalRef)
	}
	if p.DOI != nil && *p.DOI != "" {
		fmt.Fprintf(&b, ",\ndoi = {%s}", *p.DOI)
	}
	b.WriteString("\n}")
	return b.String()
}
