package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const docxBodyPart = "word/document.xml"

// documentXML mirrors the parts of word/document.xml that carry text.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

// paragraph holds the w:t contents found anywhere below a w:p, in document
// order. Runs may sit inside w:hyperlink, w:smartTag or w:fldSimple.
type paragraph struct {
	Text []string
}

type textElement struct {
	Content string `xml:",chardata"`
}

func (p *paragraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "t" {
				depth++
				continue
			}
			var t textElement
			if err := d.DecodeElement(&t, &el); err != nil {
				return err
			}
			p.Text = append(p.Text, t.Content)
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

// parseDOCX returns the text of every body paragraph, one per line.
func parseDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != docxBodyPart {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s in %s: %w", docxBodyPart, filepath.Base(path), err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s in %s: %w", docxBodyPart, filepath.Base(path), err)
		}
		return paragraphText(content)
	}
	// A package without a body part has no paragraphs.
	return "", nil
}

func paragraphText(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("decode %s: %w", docxBodyPart, err)
	}
	var sb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		for _, t := range para.Text {
			sb.WriteString(t)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
