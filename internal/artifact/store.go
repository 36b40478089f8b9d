package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"doctag/internal/ml"
	"doctag/internal/util"
)

// Store keeps one directory per artifact under root. Directories appear
// only once fully written.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string { return s.root }

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") || name == activeFile {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Save publishes a under its metadata name. The files are written into a
// hidden temp directory that is renamed into place, so readers never see
// a partial artifact. Existing names are never overwritten.
func (s *Store) Save(a *Artifact) error {
	if a == nil || !a.Model.Ready() {
		return errors.New("save artifact: model is not ready")
	}
	name := a.Metadata.Name
	if err := validName(name); err != nil {
		return err
	}
	if err := util.EnsureDir(s.root); err != nil {
		return err
	}
	final := filepath.Join(s.root, name)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}

	tmp, err := os.MkdirTemp(s.root, ".tmp-"+name+"-")
	if err != nil {
		return fmt.Errorf("create temp artifact dir: %w", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := util.WriteJSONAtomic(filepath.Join(tmp, vectorizerFile), a.Model.Vectorizer); err != nil {
		return fmt.Errorf("write vectorizer: %w", err)
	}
	if err := util.WriteJSONAtomic(filepath.Join(tmp, classifierFile), a.Model.Classifier); err != nil {
		return fmt.Errorf("write classifier: %w", err)
	}
	if err := util.WriteJSONAtomic(filepath.Join(tmp, metadataFile), a.Metadata); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		if _, statErr := os.Stat(final); statErr == nil {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return fmt.Errorf("publish artifact: %w", err)
	}
	published = true
	return nil
}

func (s *Store) Load(name string) (*Artifact, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, name)
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	var md Metadata
	if err := readJSON(filepath.Join(dir, metadataFile), &md); err != nil {
		return nil, err
	}
	vec := &ml.TfidfVectorizer{}
	if err := readJSON(filepath.Join(dir, vectorizerFile), vec); err != nil {
		return nil, err
	}
	clf := &ml.LinearSVM{}
	if err := readJSON(filepath.Join(dir, classifierFile), clf); err != nil {
		return nil, err
	}
	model := &ml.Model{Vectorizer: vec, Classifier: clf}
	if !model.Ready() {
		return nil, fmt.Errorf("%w: %s: model state incomplete", ErrCorrupt, name)
	}
	for _, w := range clf.Weights {
		if len(w) != vec.VocabularySize() {
			return nil, fmt.Errorf("%w: %s: classifier dimension %d does not match vocabulary %d", ErrCorrupt, name, len(w), vec.VocabularySize())
		}
	}
	if md.Name == "" {
		md.Name = name
	}
	return &Artifact{Metadata: md, Model: model}, nil
}

// List returns metadata for every published artifact, oldest first.
// Unreadable directories are skipped.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	out := make([]Metadata, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		var md Metadata
		if err := readJSON(filepath.Join(s.root, e.Name(), metadataFile), &md); err != nil {
			continue
		}
		if md.Name == "" {
			md.Name = e.Name()
		}
		out = append(out, md)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrainedAt.Equal(out[j].TrainedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].TrainedAt.Before(out[j].TrainedAt)
	})
	return out, nil
}

func (s *Store) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	st, err := os.Stat(filepath.Join(s.root, name))
	return err == nil && st.IsDir()
}

// UniqueName returns base, or base with a numeric suffix when base is taken.
func (s *Store) UniqueName(base string) string {
	name := base
	for i := 2; s.Exists(name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

// Active returns the name recorded in the ACTIVE pointer.
func (s *Store) Active() (string, error) {
	name, err := util.ReadTextTrimmed(filepath.Join(s.root, activeFile))
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrNoActive
	}
	return name, nil
}

func (s *Store) LoadActive() (*Artifact, error) {
	name, err := s.Active()
	if err != nil {
		return nil, err
	}
	return s.Load(name)
}

// ActiveMetadata reads only the metadata of the active artifact.
func (s *Store) ActiveMetadata() (Metadata, error) {
	name, err := s.Active()
	if err != nil {
		return Metadata{}, err
	}
	if !s.Exists(name) {
		return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	var md Metadata
	if err := readJSON(filepath.Join(s.root, name, metadataFile), &md); err != nil {
		return Metadata{}, err
	}
	if md.Name == "" {
		md.Name = name
	}
	return md, nil
}

// Promote makes name the active artifact after checking it loads.
func (s *Store) Promote(name string) (*Artifact, error) {
	a, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	if err := util.WriteTextAtomic(filepath.Join(s.root, activeFile), name+"\n"); err != nil {
		return nil, fmt.Errorf("write active pointer: %w", err)
	}
	return a, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrCorrupt, filepath.Base(path), err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrCorrupt, filepath.Base(path), err)
	}
	return nil
}
