// Package render turns drafted complaint text into delivery artifacts: the
// plain text itself and a paginated A4 PDF with legal-letter typography.
// Rendering is deterministic for a fixed clock; the current date is the only
// injected value.
package render

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Document holds the two export artifacts produced by one render call.
// PlainText is always the unmodified complaint text; PDF may be absent when
// PDF generation failed.
type Document struct {
	PlainText string
	PDF       []byte
}

// Font selects the typeface used for all PDF text. A TTFPath is required
// for non-Latin scripts; with an empty TTFPath the built-in base font is
// used and non-Latin glyphs degrade.
type Font struct {
	Name    string
	TTFPath string
}

// builtinFont is the fallback when no TrueType file is available.
var builtinFont = Font{Name: "Helvetica"}

// ResolveFont returns a Font for the given TrueType path, falling back to
// the built-in base font with a warning when the file is missing.
func ResolveFont(path string) Font {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Font{Name: "DejaVu", TTFPath: path}
		}
	}
	log.Printf("Warning: font file %q not found. PDF export for non-English languages may fail.", path)
	return builtinFont
}

// Renderer converts complaint text into a Document.
type Renderer struct {
	font Font
	now  func() time.Time
}

// Option is a functional option for Renderer.
type Option func(*Renderer)

// WithClock overrides the clock used for [Current Date] substitution.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// New creates a renderer using the given font.
func New(font Font, opts ...Option) *Renderer {
	r := &Renderer{
		font: font,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Role is the visual role a complaint line is rendered with.
type Role int

const (
	RoleBody Role = iota
	RoleTitle
	RoleHeading
	RoleAddress
)

// headingKeywords marks the fixed section headers of the complaint
// template.
var headingKeywords = []string{
	"Parties Involved",
	"Factual Summary",
	"Applicable Legal Sections",
	"Demand or Request",
	"Verification",
	"Date:",
	"Sender Details",
	"Signature:",
}

// ClassifyLine assigns a line its visual role. Checked in priority order:
// short title line, template heading, address block, body.
func ClassifyLine(line string) Role {
	if strings.Contains(strings.ToUpper(line), "LEGAL COMPLAINT") && len(line) < 30 {
		return RoleTitle
	}
	for _, keyword := range headingKeywords {
		if strings.Contains(line, keyword) {
			return RoleHeading
		}
	}
	if strings.HasPrefix(line, "To,") {
		return RoleAddress
	}
	return RoleBody
}

// underscoresPerInch converts a blank-line width to an underscore count.
const underscoresPerInch = 20

// blankLine returns a fill-in line of underscores sized for handwriting.
func blankLine(widthInches float64) string {
	return strings.Repeat("_", int(widthInches*underscoresPerInch))
}

// currentDateToken marks the one substitution resolved from the clock
// instead of a blank line.
const currentDateToken = "\x00date\x00"

// substitution pairs a placeholder pattern with its replacement. Rules are
// independent and applied in order against the same line.
type substitution struct {
	pattern *regexp.Regexp
	replace string
}

var substitutions = []substitution{
	{regexp.MustCompile(`(?i)\[Police Station Name.*?\]`), blankLine(3)},
	{regexp.MustCompile(`(?i)\[City, State, India.*?\]`), blankLine(3)},
	{regexp.MustCompile(`(?i)\[Current Date.*?\]`), currentDateToken},
	{regexp.MustCompile(`(?i)\[Date of incident.*?\]`), blankLine(2)},
	{regexp.MustCompile(`(?i)\[Time of incident.*?\]`), blankLine(2)},
	{regexp.MustCompile(`(?i)\[.*?Name.*?\]`), blankLine(3)},
	{regexp.MustCompile(`(?i)\[.*?Address.*?\]`), blankLine(4)},
	{regexp.MustCompile(`(?i)\[.*?Contact.*?\]`), blankLine(2.5)},
	{regexp.MustCompile(`(?i)\[User's Signature.*?\]`), blankLine(2.5)},
	{regexp.MustCompile(`(?i)\[Complainant's.*?\]`), blankLine(3)},
	{regexp.MustCompile(`(?i)\[User's.*?\]`), blankLine(3)},
	{regexp.MustCompile(`(?i)\[.*?description of the person.*?\]`), blankLine(5)},
}

// SubstitutePlaceholders replaces bracketed placeholder tokens with
// fill-in blank lines, and [Current Date] placeholders with the given
// date formatted as full month name, day, year.
func SubstitutePlaceholders(line string, now time.Time) string {
	for _, sub := range substitutions {
		line = sub.pattern.ReplaceAllLiteralString(line, sub.replace)
	}
	return strings.ReplaceAll(line, currentDateToken, now.Format("January 02, 2006"))
}

// Page geometry and type styles follow the formal complaint letter layout:
// A4, 60pt side margins, 50pt top and bottom.
const (
	marginSide     = 60
	marginTop      = 50
	marginBottom   = 50
	pointsPerInch  = 72
	blankGapInches = 0.15
)

type style struct {
	size        float64
	leading     float64
	align       string
	spaceBefore float64
	spaceAfter  float64
}

var (
	titleStyle   = style{size: 18, leading: 22, align: "C", spaceAfter: 20}
	headingStyle = style{size: 13, leading: 16, align: "L", spaceBefore: 15, spaceAfter: 10}
	bodyStyle    = style{size: 11, leading: 16, align: "J", spaceAfter: 8}
	addressStyle = style{size: 11, leading: 14, align: "L", spaceAfter: 6}
)

func styleFor(role Role) style {
	switch role {
	case RoleTitle:
		return titleStyle
	case RoleHeading:
		return headingStyle
	case RoleAddress:
		return addressStyle
	default:
		return bodyStyle
	}
}

// Render produces both artifacts from one complaint text. The plain-text
// artifact always succeeds; a PDF failure (missing glyphs, layout error) is
// returned alongside the partially filled Document and must be treated as a
// per-export error, not a pipeline abort.
func (r *Renderer) Render(complaintText string) (Document, error) {
	doc := Document{PlainText: complaintText}

	pdfBytes, err := r.buildPDF(complaintText)
	if err != nil {
		return doc, fmt.Errorf("pdf generation failed: %w", err)
	}
	doc.PDF = pdfBytes
	return doc, nil
}

func (r *Renderer) buildPDF(complaintText string) ([]byte, error) {
	now := r.now()

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginSide, marginTop, marginSide)
	pdf.SetAutoPageBreak(true, marginBottom)
	// Pin document metadata to the injected clock so output is
	// reproducible for a fixed date.
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)

	fontName := r.font.Name
	translate := func(s string) string { return s }
	if r.font.TTFPath != "" {
		pdf.AddUTF8Font(fontName, "", r.font.TTFPath)
	} else {
		// The base font is Latin-1 only; out-of-range glyphs degrade to a
		// visible placeholder rather than corrupting the document.
		translate = latinFallback
	}

	pdf.AddPage()

	for _, rawLine := range strings.Split(complaintText, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			pdf.Ln(blankGapInches * pointsPerInch)
			continue
		}

		role := ClassifyLine(line)
		text := SubstitutePlaceholders(line, now)
		if role == RoleTitle {
			// The title never carries placeholders; keep it verbatim.
			text = line
		}
		st := styleFor(role)

		if st.spaceBefore > 0 {
			pdf.Ln(st.spaceBefore)
		}
		pdf.SetFont(fontName, "", st.size)
		pdf.MultiCell(0, st.leading, translate(text), "", st.align, false)
		if st.spaceAfter > 0 {
			pdf.Ln(st.spaceAfter)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// latinFallback maps text onto the base font's Latin-1 range, replacing
// anything it cannot encode with '?'.
func latinFallback(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > 0xFF {
			b.WriteByte('?')
			continue
		}
		// Core fonts are single-byte encoded; emit the raw byte.
		b.WriteByte(byte(r))
	}
	return b.String()
}
