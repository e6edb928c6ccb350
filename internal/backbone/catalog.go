package backbone

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"incnet/internal/nn"
)

const manifestFile = "manifest.yaml"

// Weights maps dotted parameter names to their values.
type Weights map[string]*mat.Dense

// Catalog supplies pretrained weights by model name.
type Catalog interface {
	Load(name string) (Weights, error)
}

// Manifest describes one stored model.
type Manifest struct {
	Name   string          `yaml:"name"`
	OutDim int             `yaml:"out_dim"`
	Params []ManifestParam `yaml:"params"`
}

type ManifestParam struct {
	Name string `yaml:"name"`
	Rows int    `yaml:"rows"`
	Cols int    `yaml:"cols"`
	File string `yaml:"file"`
}

// DirCatalog stores each model under <root>/<name>/ as a manifest.yaml plus
// one gonum binary blob per parameter.
type DirCatalog struct {
	root string
}

// NewDirCatalog resolves dir (expanding a leading '~') to an absolute path.
// The directory does not need to exist until Load or Save is called.
func NewDirCatalog(dir string) (*DirCatalog, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &DirCatalog{root: abs}, nil
}

func (c *DirCatalog) Root() string { return c.root }

// List scans the root for subdirectories holding a manifest.
func (c *DirCatalog) List() ([]Manifest, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := c.readManifest(e.Name())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *DirCatalog) readManifest(name string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(filepath.Join(c.root, name, manifestFile))
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse manifest %s: %w", name, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	return m, nil
}

// Load reads every parameter listed in the model's manifest.
func (c *DirCatalog) Load(name string) (Weights, error) {
	m, err := c.readManifest(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrWeightsNotFound(name)
		}
		return nil, err
	}
	w := make(Weights, len(m.Params))
	for _, p := range m.Params {
		d, err := readDense(filepath.Join(c.root, name, p.File))
		if err != nil {
			return nil, fmt.Errorf("load %s/%s: %w", name, p.Name, err)
		}
		if r, cols := d.Dims(); r != p.Rows || cols != p.Cols {
			return nil, fmt.Errorf("load %s/%s: stored %dx%d, manifest says %dx%d", name, p.Name, r, cols, p.Rows, p.Cols)
		}
		w[p.Name] = d
	}
	return w, nil
}

// Save writes every parameter of m under name, replacing any previous entry.
func (c *DirCatalog) Save(name string, outDim int, m nn.Module) error {
	dir := filepath.Join(c.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	man := Manifest{Name: name, OutDim: outDim}
	for _, np := range m.NamedParameters() {
		file := np.Name + ".bin"
		if err := writeDense(filepath.Join(dir, file), np.Param.Value); err != nil {
			return fmt.Errorf("save %s: %w", np.Name, err)
		}
		r, cols := np.Param.Value.Dims()
		man.Params = append(man.Params, ManifestParam{Name: np.Name, Rows: r, Cols: cols, File: file})
	}
	b, err := yaml.Marshal(man)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), b, 0o644)
}

func readDense(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var d mat.Dense
	if _, err := d.UnmarshalBinaryFrom(bufio.NewReader(f)); err != nil {
		return nil, err
	}
	return &d, nil
}

func writeDense(path string, d *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := d.MarshalBinaryTo(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadReport lists parameter names that did not line up between a module
// and a set of weights.
type LoadReport struct {
	Missing    []string // in the module, absent from the weights
	Unexpected []string // in the weights, absent from the module
}

// LoadWeights copies w into the matching parameters of m. Names absent on
// either side are reported, not fatal; a shape mismatch is an error and
// leaves m partially loaded.
func LoadWeights(m nn.Module, w Weights) (LoadReport, error) {
	var rep LoadReport
	seen := make(map[string]bool, len(w))
	for _, np := range m.NamedParameters() {
		src, ok := w[np.Name]
		if !ok {
			rep.Missing = append(rep.Missing, np.Name)
			continue
		}
		seen[np.Name] = true
		sr, sc := src.Dims()
		dr, dc := np.Param.Value.Dims()
		if sr != dr || sc != dc {
			return rep, fmt.Errorf("weights %s: shape %dx%d, want %dx%d", np.Name, sr, sc, dr, dc)
		}
		np.Param.Value.Copy(src)
	}
	for name := range w {
		if !seen[name] {
			rep.Unexpected = append(rep.Unexpected, name)
		}
	}
	sort.Strings(rep.Unexpected)
	return rep, nil
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
