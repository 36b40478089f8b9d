// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"doctag/internal/util"

	"golang.org/x/text/encoding/charmap"
)

const (
	FormatPDF   = "pdf"
	FormatDOCX  = "docx"
	FormatText  = "txt"
	FormatImage = "image"
)

var (
	ErrFileNotFound   = errors.New("file not found")
	ErrOCRUnavailable = errors.New("ocr not available")
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true, ".bmp": true, ".gif": true, ".webp": true,
}

// SupportedExtensions lists the file extensions Extract can read text from.
var SupportedExtensions = []string{".pdf", ".docx", ".txt"}

type Result struct {
	Text    string `json:"text"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Pages   int    `json:"pages,omitempty"`
	Format  string `json:"format"`

	err error
}

// Err returns the failure behind an unsuccessful result.
func (r Result) Err() error { return r.err }

// ErrorType is a short machine-readable label for the failure.
func (r Result) ErrorType() string { return ErrorType(r.err) }

// ErrorType labels an extraction error, or any error wrapping one.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileNotFound):
		return "file_not_found"
	case errors.Is(err, util.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrOCRUnavailable):
		return "ocr_unavailable"
	case errors.Is(err, util.ErrNoExtractableText):
		return "empty_document"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "extraction_error"
	}
}

func failed(format string, err error) Result {
	return Result{Format: format, Error: err.Error(), err: err}
}

// FormatOf maps a file name to the extractor that handles it, or "".
func FormatOf(path string) string {
	ext := util.Ext(path)
	switch {
	case ext == ".pdf":
		return FormatPDF
	case ext == ".docx":
		return FormatDOCX
	case ext == ".txt" || ext == ".text":
		return FormatText
	case imageExts[ext]:
		return FormatImage
	}
	return ""
}

// Extract reads the text of the file at path. It never panics and never
// returns a bare error: failures come back as an unsuccessful Result.
func Extract(ctx context.Context, path string) Result {
	format := FormatOf(path)
	if err := ctx.Err(); err != nil {
		return failed(format, err)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return failed(format, fmt.Errorf("%w: %s", ErrFileNotFound, path))
		}
		return failed(format, fmt.Errorf("stat %s: %w", path, err))
	}

	var (
		text  string
		pages int
		err   error
	)
	switch format {
	case FormatPDF:
		text, pages, err = readPDF(path)
	case FormatDOCX:
		text, err = readDOCX(path)
	case FormatText:
		text, err = readText(path)
	case FormatImage:
		err = fmt.Errorf("%w: %s needs OCR", ErrOCRUnavailable, util.Ext(path))
	default:
		err = fmt.Errorf("%w: %q", util.ErrUnsupportedFormat, util.Ext(path))
	}
	if err != nil {
		r := failed(format, err)
		r.Pages = pages
		return r
	}
	if err := ctx.Err(); err != nil {
		return failed(format, err)
	}

	text = strings.TrimSpace(util.SanitizeText(text))
	if text == "" {
		r := failed(format, util.ErrNoExtractableText)
		if format == FormatPDF {
			r = failed(format, fmt.Errorf("%w (scanned pdf, %w)", util.ErrNoExtractableText, ErrOCRUnavailable))
		}
		r.Pages = pages
		return r
	}
	return Result{Text: text, Success: true, Pages: pages, Format: format}
}

// readText accepts UTF-8 and falls back to Windows-1252, which also covers
// Latin-1 for printable text.
func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	b = []byte(strings.TrimPrefix(string(b), "\ufeff"))
	if utf8.Valid(b) {
		return string(b), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(decoded), nil
}
