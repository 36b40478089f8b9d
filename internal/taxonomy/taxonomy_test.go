package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultTaxonomy(t *testing.T) {
	tx := Default()
	require.Equal(t, []string{"factura", "contrato", "nomina", "presupuesto", "recibo", "certificado", "fiscal", "notificacion", "otro"}, tx.IDs())
	require.Equal(t, "otro", tx.DefaultCategory().ID)
	require.Equal(t, Thresholds{High: 0.80, Medium: 0.50, Low: 0.30}, tx.Thresholds())
	require.True(t, tx.IsStopword("de"))
	require.False(t, tx.IsStopword("factura"))

	f, ok := tx.Get("factura")
	require.True(t, ok)
	require.Contains(t, f.Keywords.Strong, "nº factura")
}

func TestFolderFor(t *testing.T) {
	tx := Default()
	require.Equal(t, "/Documentos/Facturas", tx.FolderFor("factura", ""))
	require.Equal(t, "/ana/Documentos/Facturas", tx.FolderFor("factura", "ana"))
	require.Equal(t, "/Documentos/Otros", tx.FolderFor(Unknown, ""))
	require.Equal(t, "/ana/Documentos/Otros", tx.FolderFor("nope", "/ana/"))
}

func TestOrderAndValidate(t *testing.T) {
	tx := Default()
	require.Less(t, tx.Order("factura"), tx.Order("contrato"))
	require.Equal(t, len(tx.IDs()), tx.Order("missing"))
	require.NoError(t, tx.Validate(Unknown))
	require.ErrorIs(t, tx.Validate("missing"), ErrUnknownCategory)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"categories": []}`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"categories": [{"id": "a"}, {"id": "a"}]}`))
	require.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte(`{"categories": [{"id": "unknown"}]}`))
	require.ErrorContains(t, err, "reserved")

	_, err = Parse([]byte(`{"default_category": "x", "categories": [{"id": "a"}]}`))
	require.ErrorContains(t, err, "default category")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tax.json")
	doc := `{"categories": [{"id": "a", "folder_path": "/A"}, {"id": "b", "folder_path": "/B"}],
	         "confidence_thresholds": {"high": 0.9, "medium": 0.6, "low": 0.2}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	tx, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "b", tx.DefaultCategory().ID)
	require.InDelta(t, 0.9, tx.Thresholds().High, 1e-9)
	require.Equal(t, "es", tx.Language())
}

func TestParseFoldsDecomposedKeywords(t *testing.T) {
	// Keywords and stop words written with combining accents.
	doc := `{"categories": [{"id": "nomina", "keywords": {"strong": ["  NO\u0301mina "], "weak": ["Sen\u0303al"]}}],
	         "stopwords": ["E\u0301L", " "]}`
	tx, err := Parse([]byte(doc))
	require.NoError(t, err)

	c, ok := tx.Get("nomina")
	require.True(t, ok)
	require.Equal(t, []string{"nómina"}, c.Keywords.Strong)
	require.Equal(t, []string{"señal"}, c.Keywords.Weak)
	require.True(t, tx.IsStopword("él"))
	require.False(t, tx.IsStopword("e\u0301l"))
}
