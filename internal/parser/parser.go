// Package parser extracts plain text from user documents.
//
// Dispatch is on file extension (case-insensitive). Extensions without a
// parsing strategy yield empty text rather than an error so the caller can
// decide how to treat them.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is the closed set of document kinds the parser understands.
type Format int

const (
	FormatUnsupported Format = iota
	FormatPDF
	FormatDOCX
	FormatPlainText
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatPlainText:
		return "txt"
	default:
		return "unsupported"
	}
}

// SupportedExtensions lists the extensions that produce indexable text.
var SupportedExtensions = []string{".pdf", ".docx", ".txt"}

// DetectFormat maps a path to its Format using the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".txt":
		return FormatPlainText
	default:
		return FormatUnsupported
	}
}

// Parser implements domain.Parser. It holds no state and is safe for concurrent use.
type Parser struct{}

// New creates a parser.
func New() *Parser { return &Parser{} }

// Parse returns the text content of the file at path.
func (p *Parser) Parse(path string) (string, error) {
	switch DetectFormat(path) {
	case FormatPDF:
		return parsePDF(path)
	case FormatDOCX:
		return parseDOCX(path)
	case FormatPlainText:
		return parsePlainText(path)
	default:
		return "", nil
	}
}

func parsePlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}
