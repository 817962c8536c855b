package profile

import (
	"strings"
	"testing"

	"github.com/brandscaling/coachflow/internal/models"
)

func TestAnalyzeTextClassification(t *testing.T) {
	cases := []struct {
		name string
		text string
		want models.ProfileType
	}{
		{"architect", "Your result: Architect. You think in systems.", models.ProfileTypeArchitect},
		{"alchemist", "Your result: Alchemist. You lead with intuition.", models.ProfileTypeAlchemist},
		{"blurred", "Your result is blurred between both types.", models.ProfileTypeBlurred},
		{"unknown", "No recognizable result in this document.", models.ProfileTypeUnknown},
		{"case insensitive", "YOUR RESULT: ARCHITECT", models.ProfileTypeArchitect},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := AnalyzeText(tc.text)
			if p.Type != tc.want {
				t.Errorf("expected %s, got %s", tc.want, p.Type)
			}
			if tc.want == models.ProfileTypeUnknown {
				if p.Confidence != 0.0 {
					t.Errorf("expected zero confidence for unknown, got %f", p.Confidence)
				}
			} else if p.Confidence != 0.9 {
				t.Errorf("expected 0.9 confidence, got %f", p.Confidence)
			}
		})
	}
}

func TestAnalyzeTextPriorityOrder(t *testing.T) {
	// Architect wins when multiple type keywords appear.
	p := AnalyzeText("Part Alchemist, part Architect, somewhat blurred.")
	if p.Type != models.ProfileTypeArchitect {
		t.Errorf("expected architect to win priority, got %s", p.Type)
	}

	p = AnalyzeText("Mostly Alchemist with a blurred edge.")
	if p.Type != models.ProfileTypeAlchemist {
		t.Errorf("expected alchemist over blurred, got %s", p.Type)
	}
}

func TestAnalyzeTextExcerpt(t *testing.T) {
	short := "Architect result"
	if p := AnalyzeText(short); p.Excerpt != short {
		t.Errorf("expected short text kept verbatim, got %q", p.Excerpt)
	}

	long := strings.Repeat("a", ExcerptLimit+100)
	p := AnalyzeText(long)
	if len(p.Excerpt) != ExcerptLimit+3 {
		t.Errorf("expected excerpt of %d chars, got %d", ExcerptLimit+3, len(p.Excerpt))
	}
	if !strings.HasSuffix(p.Excerpt, "...") {
		t.Error("expected truncated excerpt to end with ellipsis")
	}
}

func TestSaveUpload(t *testing.T) {
	e := NewExtractor(t.TempDir())

	fileID, path, err := e.SaveUpload(strings.NewReader("not really a pdf"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	if fileID == "" {
		t.Error("expected non-empty file id")
	}
	if !strings.HasSuffix(path, fileID+".pdf") {
		t.Errorf("expected path keyed by file id, got %q", path)
	}

	other, _, err := e.SaveUpload(strings.NewReader("another"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	if other == fileID {
		t.Error("expected unique file ids per upload")
	}
}

func TestExtractTextRejectsInvalidPDF(t *testing.T) {
	e := NewExtractor(t.TempDir())
	_, path, err := e.SaveUpload(strings.NewReader("plain text, not a pdf"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	if _, err := e.ExtractText(path); err == nil {
		t.Error("expected extraction error for malformed PDF")
	}
}
