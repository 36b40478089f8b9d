package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"doctag/internal/ml"

	"github.com/stretchr/testify/require"
)

func trainedArtifact(t *testing.T, name string, at time.Time) *Artifact {
	t.Helper()
	d := ml.Dataset{}
	for i := 0; i < 6; i++ {
		d.Texts = append(d.Texts, "factura iva total pagar", "nomina irpf salario trabajador", "contrato clausula partes firma")
		d.Labels = append(d.Labels, "factura", "nomina", "contrato")
	}
	params := ml.DefaultTrainParams()
	res, err := ml.Train(context.Background(), d, ml.Dataset{}, d, params)
	require.NoError(t, err)
	return FromTraining(name, res, params, at)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	a := trainedArtifact(t, "tfidf_svm_v1", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(a))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp directories must not survive publish")

	got, err := s.Load("tfidf_svm_v1")
	require.NoError(t, err)
	require.Equal(t, a.Metadata.Classes, got.Metadata.Classes)
	require.Equal(t, a.Metadata.VocabularySize, got.Metadata.VocabularySize)
	require.InDelta(t, 1.0, got.Metadata.Metrics.Test.Accuracy, 1e-9)

	want, err := a.Model.Predict("nomina irpf")
	require.NoError(t, err)
	have, err := got.Model.Predict("nomina irpf")
	require.NoError(t, err)
	require.Equal(t, want, have)
}

func TestSaveNeverOverwrites(t *testing.T) {
	s := NewStore(t.TempDir())
	a := trainedArtifact(t, "m1", time.Now())
	require.NoError(t, s.Save(a))
	require.ErrorIs(t, s.Save(a), ErrExists)
	require.Equal(t, "m1_2", s.UniqueName("m1"))
	require.Equal(t, "m2", s.UniqueName("m2"))
}

func TestSaveRejectsBadNames(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, name := range []string{"", "..", "a/b", ".hidden", "ACTIVE"} {
		a := trainedArtifact(t, name, time.Now())
		require.Error(t, s.Save(a), name)
	}
}

func TestListAndPromote(t *testing.T) {
	s := NewStore(t.TempDir())
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(trainedArtifact(t, "newer", t0.Add(time.Hour))))
	require.NoError(t, s.Save(trainedArtifact(t, "older", t0)))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "older", list[0].Name)
	require.Equal(t, "newer", list[1].Name)

	_, err = s.Active()
	require.ErrorIs(t, err, ErrNoActive)

	_, err = s.Promote("missing")
	require.ErrorIs(t, err, ErrNotFound)

	a, err := s.Promote("newer")
	require.NoError(t, err)
	require.Equal(t, "newer", a.Metadata.Name)
	active, err := s.LoadActive()
	require.NoError(t, err)
	require.Equal(t, "newer", active.Metadata.Name)
	md, err := s.ActiveMetadata()
	require.NoError(t, err)
	require.Equal(t, "newer", md.Name)
}

func TestLoadCorrupt(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	require.NoError(t, s.Save(trainedArtifact(t, "m1", time.Now())))
	require.NoError(t, os.WriteFile(filepath.Join(root, "m1", classifierFile), []byte("{not json"), 0o644))
	_, err := s.Load("m1")
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = s.Load("absent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExpectedAccuracy(t *testing.T) {
	var nilArtifact *Artifact
	require.InDelta(t, 0.9, nilArtifact.ExpectedAccuracy(0.9), 1e-9)

	a := &Artifact{Metadata: Metadata{TestSize: 10, Metrics: Metrics{Test: ml.SplitMetrics{Accuracy: 0.95}}}}
	require.InDelta(t, 0.95, a.ExpectedAccuracy(0.9), 1e-9)
	require.InDelta(t, 0.9, (&Artifact{}).ExpectedAccuracy(0.9), 1e-9)
}

func TestVersionName(t *testing.T) {
	at := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)
	require.Equal(t, "tfidf_svm_retrained_20250607_080910", VersionName("tfidf_svm_retrained", at))
}
