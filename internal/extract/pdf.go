package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF returns the text layer of a PDF. Malformed files can make the
// parser panic; that is reported as an error.
func readPDF(path string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	pages = r.NumPage()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", pages, fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), pages, nil
}
