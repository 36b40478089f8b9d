package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"doctag/internal/util"

	"github.com/stretchr/testify/require"
)

const docxXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>FACTURA</w:t></w:r><w:r><w:t xml:space="preserve"> Nº 2025-001</w:t></w:r></w:p>
    <w:tbl><w:tr>
      <w:tc><w:p><w:r><w:t>Base imponible</w:t></w:r></w:p></w:tc>
      <w:tc><w:p><w:r><w:t>1.000,00€</w:t></w:r></w:p></w:tc>
    </w:tr></w:tbl>
    <w:p><w:r><w:t>Total</w:t></w:r><w:r><w:tab/><w:t>1.210,00€</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeDOCX(t *testing.T, path, body string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(docxBody)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractText(t *testing.T) {
	dir := t.TempDir()
	utf := filepath.Join(dir, "nomina.txt")
	require.NoError(t, os.WriteFile(utf, []byte("\ufeffNómina de marzo\x00\nIRPF retenido\n"), 0o644))
	res := Extract(context.Background(), utf)
	require.True(t, res.Success, res.Error)
	require.Equal(t, FormatText, res.Format)
	require.Equal(t, "Nómina de marzo\nIRPF retenido", res.Text)

	latin := filepath.Join(dir, "latin.TXT")
	require.NoError(t, os.WriteFile(latin, []byte("N\xf3mina de marzo"), 0o644))
	res = Extract(context.Background(), latin)
	require.True(t, res.Success, res.Error)
	require.Equal(t, "Nómina de marzo", res.Text)
}

func TestExtractDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factura.docx")
	writeDOCX(t, path, docxXML)

	res := Extract(context.Background(), path)
	require.True(t, res.Success, res.Error)
	require.Equal(t, FormatDOCX, res.Format)
	require.Equal(t, "FACTURA Nº 2025-001\nBase imponible\n1.000,00€\nTotal\t1.210,00€", res.Text)
}

func TestExtractFailures(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "scan.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xff, 0xd8, 0xff}, 0o644))
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n\t "), 0o644))
	odd := filepath.Join(dir, "sheet.xlsx")
	require.NoError(t, os.WriteFile(odd, []byte("x"), 0o644))
	badPDF := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(badPDF, []byte("%PDF-1.4 not really"), 0o644))
	badDOCX := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(badDOCX, []byte("not a zip"), 0o644))

	cases := []struct {
		name    string
		path    string
		errType string
		is      error
	}{
		{"image", img, "ocr_unavailable", ErrOCRUnavailable},
		{"empty", empty, "empty_document", util.ErrNoExtractableText},
		{"unsupported", odd, "unsupported_format", util.ErrUnsupportedFormat},
		{"missing", filepath.Join(dir, "nope.pdf"), "file_not_found", ErrFileNotFound},
		{"broken pdf", badPDF, "extraction_error", nil},
		{"broken docx", badDOCX, "extraction_error", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Extract(context.Background(), tc.path)
			require.False(t, res.Success)
			require.Empty(t, res.Text)
			require.NotEmpty(t, res.Error)
			require.Equal(t, tc.errType, res.ErrorType())
			if tc.is != nil {
				require.ErrorIs(t, res.Err(), tc.is)
			}
		})
	}
}

func TestExtractCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("factura"), 0o644))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := Extract(ctx, path)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err(), context.Canceled)
	require.Equal(t, "cancelled", res.ErrorType())
}

func TestFormatOf(t *testing.T) {
	require.Equal(t, FormatPDF, FormatOf("/x/A.PDF"))
	require.Equal(t, FormatDOCX, FormatOf("b.docx"))
	require.Equal(t, FormatImage, FormatOf("c.tiff"))
	require.Equal(t, "", FormatOf("d.doc"))
}
