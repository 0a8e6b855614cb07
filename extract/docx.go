package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"

	"ragify/types"
)

// DocxHandler extracts raw text from word/document.xml inside the docx
// archive, paragraphs separated by newlines.
type DocxHandler struct{}

func (h *DocxHandler) ID() string { return "docx" }

func (h *DocxHandler) Supports(ext string) bool { return ext == "docx" }

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Texts []string `xml:"t"`
}

func (h *DocxHandler) Extract(filePath string) (string, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return "", types.WrapError(types.ErrUnsupportedFormat, err, "%s is not a valid docx archive", filePath)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", types.WrapError(types.ErrUnsupportedFormat, err, "failed to open document.xml in %s", filePath)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", types.WrapError(types.ErrUnsupportedFormat, err, "failed to read document.xml in %s", filePath)
		}

		var doc docxDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return "", types.WrapError(types.ErrUnsupportedFormat, err, "failed to parse document.xml in %s", filePath)
		}

		var b strings.Builder
		for _, p := range doc.Body.Paragraphs {
			for _, r := range p.Runs {
				for _, t := range r.Texts {
					b.WriteString(t)
				}
			}
			b.WriteString("\n")
		}
		return strings.TrimSpace(b.String()), nil
	}

	return "", types.NewError(types.ErrUnsupportedFormat, "%s contains no word/document.xml", filePath)
}
