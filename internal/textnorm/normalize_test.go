package textnorm

import (
	"testing"

	"doctag/internal/taxonomy"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := New(taxonomy.Default(), "es")
	in := "FACTURA Nº 2025/001\n\n\n\nFecha:   12/03/2025\tProveedor de la empresa\nVer https://example.com/x?y=1 o escribir a pagos@empresa.es"
	got := n.Normalize(in)
	require.Equal(t, "factura nº 2025 001 fecha 12 03 2025 proveedor empresa ver escribir", got)
}

func TestNormalizeKeepsAccentedWords(t *testing.T) {
	n := New(taxonomy.Default(), "es")
	require.Equal(t, "nómina líquido percibir", n.Normalize("Nómina — Líquido a percibir"))
	// Decomposed input is canonicalized first.
	require.Equal(t, "nómina", n.Normalize("no\u0301mina"))
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New(taxonomy.Default(), "es")
	inputs := []string{
		"",
		"   ",
		"CONTRATO DE ARRENDAMIENTO\n\nREUNIDOS de una parte...",
		"İstanbul ÉCOLE straße ǅ x@y.com www.sitio.es/abc",
		"Recibí de D. Juan 1.250,00 € — cuota mensual",
		"ﬁscal ＡＢＣ ½ ①",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		require.Equal(t, once, n.Normalize(once), in)
	}
}

func TestLowerKeepsPhrases(t *testing.T) {
	n := New(nil, "es")
	require.Equal(t, "número de factura: 7\n\ntotal a pagar", n.Lower("Número  de Factura: 7\n\n\n\nTOTAL a pagar"))
}

func TestCleanEmpty(t *testing.T) {
	require.Equal(t, "", Clean(""))
	require.Equal(t, "", Clean(" \n\t "))
	require.Equal(t, "", New(nil, "").Normalize("http://only.example.com"))
}

func TestCleanCollapsesGapsLeftByRemoval(t *testing.T) {
	require.Equal(t, "Ver o escribir", Clean("Ver  https://example.com/a   o escribir"))
	require.Equal(t, "a\n\nb", Clean("a\n\n  pagos@empresa.es  \n\nb"))
	require.Equal(t, "Total 10 €", Clean("Total\t\t10 €\r\nwww.sitio.es"))
}

func TestDecomposedTaxonomyKeywordMatchesNormalizedText(t *testing.T) {
	tx, err := taxonomy.Parse([]byte(`{"categories": [{"id": "n", "keywords": {"strong": ["No\u0301mina"]}}]}`))
	require.NoError(t, err)
	c, _ := tx.Get("n")
	require.Equal(t, c.Keywords.Strong[0], New(tx, "es").Normalize("NÓMINA"))
}
