package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"ragify/types"
)

// PDFHandler extracts plain text from PDF files.
type PDFHandler struct{}

func NewPDFHandler() *PDFHandler {
	return &PDFHandler{}
}

func (h *PDFHandler) ID() string { return "pdf" }

func (h *PDFHandler) Supports(ext string) bool { return ext == "pdf" }

func (h *PDFHandler) Extract(filePath string) (string, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", types.WrapError(types.ErrUnsupportedFormat, err, "failed to open PDF %s", filePath)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", types.WrapError(types.ErrUnsupportedFormat, err, "failed to extract text from %s", filePath)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", types.WrapError(types.ErrUnsupportedFormat, err, "failed to extract text from %s", filePath)
	}
	return buf.String(), nil
}

// CropHeaderFooter trims top and bottom page margins before extraction so
// repeated headers and footers stay out of the chunk stream. top and bottom
// are in points (1 pt = 1/72 inch).
func CropHeaderFooter(inputPath, outputPath string, top, bottom float64) error {
	conf := api.LoadConfiguration()
	pages := []string{"1-"}

	cropStr := fmt.Sprintf("%.2f 0 %.2f 0", top, bottom)
	box, err := pdfmodel.ParseBox(cropStr, pdftypes.POINTS)
	if err != nil {
		return fmt.Errorf("failed to parse crop box: %w", err)
	}

	if err := api.CropFile(inputPath, outputPath, pages, box, conf); err != nil {
		return fmt.Errorf("failed to crop PDF: %w", err)
	}
	return nil
}

// ValidatePDF reports whether the file parses as a well-formed PDF. Used by
// the upload path to reject broken files before an indexing run wastes an
// embedding pass on them.
func ValidatePDF(filePath string) error {
	if err := api.ValidateFile(filePath, api.LoadConfiguration()); err != nil {
		return types.WrapError(types.ErrUnsupportedFormat, err, "%s is not a valid PDF", filePath)
	}
	return nil
}
