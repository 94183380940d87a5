// Package preflight inspects a file before it is uploaded: it rejects what
// the remote service would refuse and summarizes the rest for the log.
package preflight

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const previewLen = 200

var ErrEmptyFile = errors.New("file is empty")

// Kinds accepted by the upload endpoint.
var supported = map[string]string{
	".pdf":  "pdf",
	".docx": "docx",
	".txt":  "text",
	".md":   "markdown",
}

type Report struct {
	Kind     string   `json:"kind"`
	Size     int      `json:"size"`
	Pages    int      `json:"pages,omitempty"`
	Preview  string   `json:"preview,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Inspect fails only for files that must not be sent. Anything it cannot
// parse is still uploadable and is noted in Warnings.
func Inspect(filename string, data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := supported[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q (allowed: %s)", ext, strings.Join(Allowed(), ", "))
	}

	r := &Report{Kind: kind, Size: len(data)}

	switch kind {
	case "pdf":
		pages, err := pageCount(data)
		if err != nil {
			r.Warnings = append(r.Warnings, err.Error())
		}
		r.Pages = pages
		text, err := extractPDF(data)
		if err != nil {
			r.Warnings = append(r.Warnings, err.Error())
		}
		r.Preview = preview(text)
	case "docx":
		text, err := extractDocx(data)
		if err != nil {
			r.Warnings = append(r.Warnings, err.Error())
		}
		r.Preview = preview(text)
	default:
		if !utf8.Valid(data) {
			r.Warnings = append(r.Warnings, "text is not valid UTF-8")
		}
		r.Preview = preview(string(data))
	}

	return r, nil
}

// Allowed lists the accepted extensions.
func Allowed() []string {
	exts := make([]string, 0, len(supported))
	for ext := range supported {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

var pdfcpuOnce sync.Once

func pageCount(data []byte) (int, error) {
	pdfcpuOnce.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf parse failed: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage() && buf.Len() < previewLen; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf text extraction failed: %w", err)
		}
		buf.WriteString(content)
		buf.WriteString("\n")
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", errors.New("pdf has no extractable text")
	}
	return text, nil
}

func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx unzip failed: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		break
	}
	if docXML == nil {
		return "", errors.New("docx has no word/document.xml")
	}

	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	var builder strings.Builder

	for builder.Len() < previewLen {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx xml parse failed: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch elem.Name.Local {
		case "t":
			var content string
			if err := decoder.DecodeElement(&content, &elem); err != nil {
				return "", err
			}
			builder.WriteString(content)
		case "p":
			builder.WriteString("\n")
		}
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errors.New("docx has no extractable text")
	}
	return text, nil
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLen]) + "…"
}
