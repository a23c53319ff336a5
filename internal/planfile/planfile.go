package planfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/kode4food/courier/pkg/api"
)

// Pattern selects plan files beneath a directory
const Pattern = "**/*.{yaml,yml,json}"

var (
	ErrUnsupportedFormat = errors.New("unsupported plan file format")
	ErrDecodePlan        = errors.New("failed to decode plan file")
)

// Decode parses a plan document. The format is chosen by the file name's
// extension; YAML documents are normalized through JSON so steps decode
// their action-specific inputs the same way in both formats. Plans that do
// not say otherwise are enabled
func Decode(name string, data []byte) (*api.Plan, error) {
	var raw []byte
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		raw = data
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecodePlan, name, err)
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecodePlan, name, err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	var plan api.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodePlan, name, err)
	}
	if !gjson.GetBytes(raw, "enabled").Exists() {
		plan.Enabled = true
	}
	return &plan, nil
}

// LoadFile reads and decodes one plan file
func LoadFile(path string) (*api.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, data)
}

// Glob lists every plan file beneath dir in lexical order
func Glob(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), Pattern)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(matches))
	for i, m := range matches {
		res[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	slices.Sort(res)
	return res, nil
}

// IsPlanFile reports whether path would be selected by Glob
func IsPlanFile(path string) bool {
	ok, _ := doublestar.Match("*.{yaml,yml,json}", filepath.Base(path))
	return ok
}
