package scrapers

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Fields is an ordered label→value map with first-writer-wins semantics:
// once a key is set, later extraction layers cannot overwrite it. That
// rule encodes a precision-over-recall priority: the structured scans
// run before the noisier free-text scan.
type Fields struct {
	keys []string
	vals map[string]string
}

// NewFields returns an empty field map.
func NewFields() *Fields {
	return &Fields{vals: make(map[string]string)}
}

// Set stores value under key unless the key is already present or either
// side is empty after trimming. Reports whether the value was written.
func (f *Fields) Set(key, value string) bool {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return false
	}
	if _, ok := f.vals[key]; ok {
		return false
	}
	f.keys = append(f.keys, key)
	f.vals[key] = value
	return true
}

// Get returns the value stored under key.
func (f *Fields) Get(key string) (string, bool) {
	v, ok := f.vals[key]
	return v, ok
}

// First returns the value of the first key present.
func (f *Fields) First(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := f.vals[k]; ok {
			return v, true
		}
	}
	return "", false
}

// Len returns the number of stored fields.
func (f *Fields) Len() int { return len(f.keys) }

// Pairs returns the fields in extraction order.
func (f *Fields) Pairs() []Field {
	out := make([]Field, 0, len(f.keys))
	for _, k := range f.keys {
		out = append(out, Field{Key: k, Value: f.vals[k]})
	}
	return out
}

var labelCleaner = regexp.MustCompile(`[^a-z0-9 ]+`)

// normalizeLabel turns a rendered label into a stable snake_case key,
// e.g. "License #:" -> "license_number".
func normalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.TrimRight(s, ":")
	s = strings.ReplaceAll(s, "#", " number")
	s = labelCleaner.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), "_")
}

// textPatterns drive the free-text line scan. Canonical key first; the
// regex matches the label portion of a line. Order matters: more specific
// labels (license_number, license_type) run before the bare "name"/"type"
// catch-alls.
var textPatterns = []struct {
	key string
	re  *regexp.Regexp
}{
	{"license_number", regexp.MustCompile(`(?i)^(license|certificate|registration)\s*(number|num|no\.?|#)\b`)},
	{"license_type", regexp.MustCompile(`(?i)^license\s+type\b`)},
	{"status", regexp.MustCompile(`(?i)^(license\s+status|current\s+status|status)\b`)},
	{"expiration_date", regexp.MustCompile(`(?i)^(expiration(\s+date)?|expires?(\s+on)?|expiry(\s+date)?|exp\.?\s*date)\b`)},
	{"issue_date", regexp.MustCompile(`(?i)^(issue\s+date|original\s+issue(\s+date)?|issued(\s+on)?|effective\s+date)\b`)},
	{"credential", regexp.MustCompile(`(?i)^(credential|profession|license\s+class)\b`)},
	{"discipline", regexp.MustCompile(`(?i)^(discipline|disciplinary\s+action|board\s+action|public\s+record\s+action|enforcement\s+action)\b`)},
	{"full_name", regexp.MustCompile(`(?i)^(licensee\s+name|full\s+name|name)\b`)},
}

// ExtractFields runs the four extraction layers unconditionally, in fixed
// order: tabular scan, definition-list scan, labeled-block scan, then the
// free-text line-pattern scan. Earlier layers win on key conflicts.
func ExtractFields(doc *goquery.Document) *Fields {
	fields := NewFields()
	tableScan(doc, fields)
	definitionListScan(doc, fields)
	labeledBlockScan(doc, fields)
	textScan(doc.Text(), fields)
	return fields
}

// tableScan treats every row with two or more cells as label→value using
// the first cell as the label.
func tableScan(doc *goquery.Document, fields *Fields) {
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		fields.Set(normalizeLabel(cells.Eq(0).Text()), strings.TrimSpace(cells.Eq(1).Text()))
	})
}

// definitionListScan pairs each dt with its immediately-following dd.
func definitionListScan(doc *goquery.Document, fields *Fields) {
	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.Next()
		if goquery.NodeName(dd) != "dd" {
			return
		}
		fields.Set(normalizeLabel(dt.Text()), strings.TrimSpace(dd.Text()))
	})
}

// labeledBlockScan handles container elements holding a label sub-element
// with a value sibling, the Bootstrap form-group shape most board detail
// pages use.
func labeledBlockScan(doc *goquery.Document, fields *Fields) {
	doc.Find("div, li, p").Each(func(_ int, block *goquery.Selection) {
		label := block.ChildrenFiltered("label, strong, b").First()
		if label.Length() == 0 {
			return
		}
		value := label.Next()
		if value.Length() == 0 {
			return
		}
		fields.Set(normalizeLabel(label.Text()), strings.TrimSpace(value.Text()))
	})
}

// textScan splits the full visible text into lines and matches each line
// against the label patterns. The value is the text after a colon on the
// same line, or the following non-empty line.
func textScan(text string, fields *Fields) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, p := range textPatterns {
			if !p.re.MatchString(line) {
				continue
			}
			value := ""
			if idx := strings.Index(line, ":"); idx >= 0 {
				value = strings.TrimSpace(line[idx+1:])
			}
			if value == "" {
				value = nextNonEmptyLine(lines, i+1)
			}
			fields.Set(p.key, value)
			break
		}
	}
}

func nextNonEmptyLine(lines []string, from int) string {
	for i := from; i < len(lines); i++ {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}
