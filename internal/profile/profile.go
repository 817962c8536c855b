// Package profile handles uploaded E-DNA result documents: persisting the PDF,
// extracting its text, and classifying it into a coach profile.
package profile

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brandscaling/coachflow/internal/models"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

const (
	// ExcerptLimit caps how much extracted text is kept on the profile.
	ExcerptLimit = 500

	// DefaultUploadDir is where uploaded PDFs land unless overridden.
	DefaultUploadDir = "uploads"

	dirPermissions = 0755
)

// Extractor persists uploaded PDFs under a directory and extracts their text.
type Extractor struct {
	uploadDir string
}

// NewExtractor creates an Extractor rooted at uploadDir. The directory is
// created on first use.
func NewExtractor(uploadDir string) *Extractor {
	if uploadDir == "" {
		uploadDir = DefaultUploadDir
	}
	return &Extractor{uploadDir: uploadDir}
}

// UploadDir returns the directory uploads are written to.
func (e *Extractor) UploadDir() string {
	return e.uploadDir
}

// SaveUpload writes the uploaded PDF bytes to disk under a fresh file id and
// returns that id and the path of the stored file.
func (e *Extractor) SaveUpload(r io.Reader) (fileID, path string, err error) {
	if err := os.MkdirAll(e.uploadDir, dirPermissions); err != nil {
		slog.Error("Extractor.SaveUpload failed to create upload directory", "error", err, "dir", e.uploadDir)
		return "", "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	fileID = uuid.NewString()
	path = filepath.Join(e.uploadDir, fileID+".pdf")

	f, err := os.Create(path)
	if err != nil {
		slog.Error("Extractor.SaveUpload failed to create file", "error", err, "path", path)
		return "", "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		slog.Error("Extractor.SaveUpload failed to write file", "error", err, "path", path)
		return "", "", fmt.Errorf("failed to write upload file: %w", err)
	}
	slog.Debug("Extractor.SaveUpload stored PDF", "fileID", fileID, "path", path)
	return fileID, path, nil
}

// ExtractText pulls the plain text out of a stored PDF.
func (e *Extractor) ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		slog.Error("Extractor.ExtractText failed to open PDF", "error", err, "path", path)
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		slog.Error("Extractor.ExtractText failed to read PDF text", "error", err, "path", path)
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return buf.String(), nil
}

// Analyze stores the PDF, extracts its text and classifies it in one call.
func (e *Extractor) Analyze(r io.Reader) (fileID string, p models.Profile, err error) {
	fileID, path, err := e.SaveUpload(r)
	if err != nil {
		return "", models.Profile{}, err
	}
	text, err := e.ExtractText(path)
	if err != nil {
		return "", models.Profile{}, err
	}
	return fileID, AnalyzeText(text), nil
}

// AnalyzeText classifies extracted document text into a profile. Pure function:
// the first matching type keyword wins, checked in Architect, Alchemist,
// Blurred order.
func AnalyzeText(text string) models.Profile {
	excerpt := text
	if len(excerpt) > ExcerptLimit {
		excerpt = excerpt[:ExcerptLimit] + "..."
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "architect"):
		return models.Profile{Type: models.ProfileTypeArchitect, Confidence: 0.9, Excerpt: excerpt}
	case strings.Contains(lower, "alchemist"):
		return models.Profile{Type: models.ProfileTypeAlchemist, Confidence: 0.9, Excerpt: excerpt}
	case strings.Contains(lower, "blurred"):
		return models.Profile{Type: models.ProfileTypeBlurred, Confidence: 0.9, Excerpt: excerpt}
	default:
		return models.Profile{Type: models.ProfileTypeUnknown, Confidence: 0.0, Excerpt: excerpt}
	}
}
