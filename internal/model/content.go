package model

// Field names of an extracted record, in output column order.
const (
	FieldURL        = "url"
	FieldTitles     = "titles"
	FieldParagraphs = "paragraphs"
	FieldLinks      = "links"
	FieldImages     = "images"
)

// ContentFields is the field set every sink record carries.
var ContentFields = []string{FieldURL, FieldTitles, FieldParagraphs, FieldLinks, FieldImages}

// ExtractedContent is the structured content of one page.
// It is produced once by the extractor and never mutated afterwards.
type ExtractedContent struct {
	// URL is the page URL as it was requested.
	URL string `json:"url"`

	// Titles are the texts of h1-h6 headings in document order.
	Titles []string `json:"titles"`

	// Paragraphs are the cleaned texts of body blocks in document order.
	Paragraphs []string `json:"paragraphs"`

	// Links are absolute URLs of anchors. Duplicates are kept.
	Links []string `json:"links"`

	// Images are absolute URLs of img sources.
	Images []string `json:"images"`
}

// Fields returns the record's field names in output order.
// Every ExtractedContent has the same field set.
func (c ExtractedContent) Fields() []string {
	fields := make([]string, len(ContentFields))
	copy(fields, ContentFields)
	return fields
}

// Value returns the value of the named field: a string for url and a
// []string for the sequence fields. ok is false for unknown names.
func (c ExtractedContent) Value(field string) (any, bool) {
	switch field {
	case FieldURL:
		return c.URL, true
	case FieldTitles:
		return c.Titles, true
	case FieldParagraphs:
		return c.Paragraphs, true
	case FieldLinks:
		return c.Links, true
	case FieldImages:
		return c.Images, true
	default:
		return nil, false
	}
}
