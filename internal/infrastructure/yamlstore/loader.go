package yamlstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"codecheck/internal/domain"
)

// Bundle is a full reference-data set loaded from disk: the jurisdiction
// forest, the versioned rule packs with their requirements, the amendments
// and the cross-reference index.
type Bundle struct {
	Jurisdictions   []domain.Jurisdiction
	Packs           []PackFile
	Amendments      []domain.Amendment
	CrossReferences []domain.CrossReference
}

// PackFile is one pack document: the rule pack plus the requirements of the
// same version.
type PackFile struct {
	Pack         domain.RulePack          `json:"pack"`
	Requirements []domain.CodeRequirement `json:"requirements"`
}

// Load reads a reference-data directory. Expected layout:
//
//	jurisdictions.yaml
//	amendments.yaml        (optional)
//	crossrefs.yaml         (optional)
//	packs/<standard>@<version>.yaml
//
// Missing optional files degrade to empty data; a missing packs directory is
// a configuration error because there is nothing to validate against.
func Load(dir string, log *slog.Logger) (*Bundle, error) {
	if log == nil {
		log = slog.Default()
	}
	bundle := &Bundle{}

	if err := loadYAML(filepath.Join(dir, "jurisdictions.yaml"), &bundle.Jurisdictions); err != nil {
		return nil, fmt.Errorf("%w: jurisdictions: %v", domain.ErrConfiguration, err)
	}

	if err := loadOptionalYAML(filepath.Join(dir, "amendments.yaml"), &bundle.Amendments); err != nil {
		return nil, fmt.Errorf("%w: amendments: %v", domain.ErrConfiguration, err)
	}
	if err := loadOptionalYAML(filepath.Join(dir, "crossrefs.yaml"), &bundle.CrossReferences); err != nil {
		return nil, fmt.Errorf("%w: cross references: %v", domain.ErrConfiguration, err)
	}

	packsDir := filepath.Join(dir, "packs")
	entries, err := os.ReadDir(packsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: read packs dir: %v", domain.ErrConfiguration, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var pf PackFile
		if err := loadYAML(filepath.Join(packsDir, name), &pf); err != nil {
			return nil, fmt.Errorf("%w: pack %s: %v", domain.ErrConfiguration, name, err)
		}
		if pf.Pack.Standard == "" || pf.Pack.Version == "" {
			return nil, fmt.Errorf("%w: pack %s missing standard or version", domain.ErrConfiguration, name)
		}
		bundle.Packs = append(bundle.Packs, pf)
	}
	if len(bundle.Packs) == 0 {
		return nil, fmt.Errorf("%w: no rule packs in %s", domain.ErrConfiguration, packsDir)
	}

	log.Info("reference data loaded",
		"dir", dir,
		"jurisdictions", len(bundle.Jurisdictions),
		"packs", len(bundle.Packs),
		"amendments", len(bundle.Amendments),
		"cross_references", len(bundle.CrossReferences))
	return bundle, nil
}

// loadYAML decodes a YAML document through its JSON shape, so the snake_case
// field names used on disk match the struct json tags and raw JSON payloads
// (amendment patches) come through intact.
func loadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	buf, err := json.Marshal(normalizeKeys(tree))
	if err != nil {
		return fmt.Errorf("convert %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func loadOptionalYAML(path string, out any) error {
	err := loadYAML(path, out)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// normalizeKeys rewrites the map[any]any nodes some YAML shapes produce into
// map[string]any so they survive json.Marshal.
func normalizeKeys(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[k] = normalizeKeys(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[fmt.Sprintf("%v", k)] = normalizeKeys(val)
		}
		return out
	case []any:
		for i := range node {
			node[i] = normalizeKeys(node[i])
		}
		return node
	default:
		return v
	}
}
