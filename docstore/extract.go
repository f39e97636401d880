package docstore

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// Extractor converts a raw file payload into plain text. Extractors are
// registered per file extension so new formats can be added without touching
// the store's control flow.
type Extractor func(data []byte) (string, error)

func defaultExtractors() map[string]Extractor {
	return map[string]Extractor{
		".pdf":  ExtractPDF,
		".docx": ExtractDOCX,
		".txt":  ExtractPlain,
		".md":   ExtractPlain,
	}
}

// ExtractPDF concatenates the text of every page.
func ExtractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return buf.String(), nil
}

// ExtractDOCX concatenates the paragraphs of word/document.xml.
func ExtractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open docx document.xml: %w", err)
		}
		text, err := docxParagraphText(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		return text, nil
	}

	return "", errors.New("docx archive has no word/document.xml")
}

func docxParagraphText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode docx xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}

// ExtractPlain handles txt and md payloads.
func ExtractPlain(data []byte) (string, error) {
	return string(data), nil
}
