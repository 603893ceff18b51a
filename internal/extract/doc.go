// Package extract turns fetched HTML into model.ExtractedContent.
//
// Extraction is best effort: malformed markup yields whatever content the
// HTML5 parser could recover, and Extract never returns an error.
package extract
