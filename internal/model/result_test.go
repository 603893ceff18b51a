package model

import "testing"

// TestHashContent tests the content digest used by the crawl history.
func TestHashContent(t *testing.T) {
	t.Parallel()

	t.Run("empty body produces empty hash", func(t *testing.T) {
		t.Parallel()

		if got := HashContent(nil); got != "" {
			t.Errorf("expected empty hash, got %q", got)
		}
	})

	t.Run("hash is hex encoded 256 bit digest", func(t *testing.T) {
		t.Parallel()

		got := HashContent([]byte("<html></html>"))
		if len(got) != 64 {
			t.Errorf("expected 64 hex characters, got %d", len(got))
		}
		if got != HashContent([]byte("<html></html>")) {
			t.Error("expected hash to be deterministic")
		}
		if got == HashContent([]byte("<html> </html>")) {
			t.Error("expected different bodies to hash differently")
		}
	})
}

// TestExtractedContentValue tests field lookup by name.
func TestExtractedContentValue(t *testing.T) {
	t.Parallel()

	content := ExtractedContent{
		URL:    "https://example.com/",
		Titles: []string{"Hello"},
		Links:  []string{"https://example.com/a", "https://example.com/a"},
	}

	if v, ok := content.Value(FieldURL); !ok || v != "https://example.com/" {
		t.Errorf("unexpected url value %v", v)
	}
	links, ok := content.Value(FieldLinks)
	if !ok || len(links.([]string)) != 2 {
		t.Errorf("expected duplicate links to be kept, got %v", links)
	}
	if _, ok := content.Value("headers"); ok {
		t.Error("expected unknown field to be reported")
	}
	if len(content.Fields()) != len(ContentFields) {
		t.Errorf("expected %d fields, got %d", len(ContentFields), len(content.Fields()))
	}
}

// TestSummary tests the run counters.
func TestSummary(t *testing.T) {
	t.Parallel()

	s := Summary{Total: 3, Rejected: 1, Succeeded: 1, Exhausted: 1}
	s.Add(Summary{Total: 1, Succeeded: 1, SinkErrors: 1})

	if s.Scheduled() != 3 {
		t.Errorf("expected 3 scheduled, got %d", s.Scheduled())
	}
	if s.Written() != 1 {
		t.Errorf("expected 1 written, got %d", s.Written())
	}
}
