// internal/engine/manifest.go
package engine

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

//go:embed manifest.schema.json
var manifestSchemaSource string

var manifestSchema = jsonschema.MustCompileString("manifest.schema.json", manifestSchemaSource)

// Manifest is a declarative model understood by the mock engine. It lists
// the model signature and, for every output, either the input it echoes or a
// constant value.
type Manifest struct {
	Metadata ModelMetadata
	Inputs   []ValueInfo
	Outputs  []ManifestOutput
}

// ManifestOutput is one declared output and how the mock engine produces it.
type ManifestOutput struct {
	ValueInfo
	From  string
	Value *Tensor
}

type rawValue struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Shape []any  `yaml:"shape"`
	From  string `yaml:"from"`
	Value []any  `yaml:"value"`
}

type rawManifest struct {
	Producer    string            `yaml:"producer"`
	GraphName   string            `yaml:"graph_name"`
	Domain      string            `yaml:"domain"`
	Description string            `yaml:"description"`
	Version     int64             `yaml:"version"`
	Custom      map[string]string `yaml:"custom_metadata"`
	Inputs      []rawValue        `yaml:"inputs"`
	Outputs     []rawValue        `yaml:"outputs"`
}

// ParseManifest decodes and validates a yaml (or json) manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("manifest: empty model")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: invalid YAML: %w", err)
	}
	if err := manifestSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("manifest: validation failed: %w", err)
	}

	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("manifest: failed to unmarshal: %w", err)
	}

	m := &Manifest{
		Metadata: ModelMetadata{
			Producer:    raw.Producer,
			GraphName:   raw.GraphName,
			Domain:      raw.Domain,
			Description: raw.Description,
			Version:     raw.Version,
			Custom:      raw.Custom,
		},
	}

	seen := make(map[string]bool)
	for _, in := range raw.Inputs {
		info, err := in.info()
		if err != nil {
			return nil, err
		}
		if seen[info.Name] {
			return nil, fmt.Errorf("manifest: duplicate input %q", info.Name)
		}
		seen[info.Name] = true
		m.Inputs = append(m.Inputs, info)
	}

	outSeen := make(map[string]bool)
	for _, out := range raw.Outputs {
		info, err := out.info()
		if err != nil {
			return nil, err
		}
		if outSeen[info.Name] {
			return nil, fmt.Errorf("manifest: duplicate output %q", info.Name)
		}
		outSeen[info.Name] = true

		mo := ManifestOutput{ValueInfo: info, From: out.From}
		switch {
		case out.From != "":
			if !seen[out.From] {
				return nil, fmt.Errorf("manifest: output %q echoes undeclared input %q", info.Name, out.From)
			}
		default:
			mo.Value, err = constant(info, out.Value)
			if err != nil {
				return nil, err
			}
		}
		m.Outputs = append(m.Outputs, mo)
	}

	return m, nil
}

func (v rawValue) info() (ValueInfo, error) {
	typ, err := ParseElementType(v.Type)
	if err != nil {
		return ValueInfo{}, fmt.Errorf("manifest: %s: %w", v.Name, err)
	}
	shape := make(Shape, len(v.Shape))
	for i, d := range v.Shape {
		switch d := d.(type) {
		case nil:
			shape[i] = UnknownDim()
		case int:
			shape[i] = FixedDim(int64(d))
		case string:
			shape[i] = SymbolicDim(strings.TrimSpace(d))
		default:
			return ValueInfo{}, fmt.Errorf("manifest: %s: unsupported dimension %v", v.Name, d)
		}
	}
	return ValueInfo{Name: v.Name, Shape: shape, Type: typ}, nil
}

func constant(info ValueInfo, values []any) (*Tensor, error) {
	dims := make([]int64, len(info.Shape))
	for i, d := range info.Shape {
		if !d.Known() {
			return nil, fmt.Errorf("manifest: constant output %q needs a fixed shape, got %s", info.Name, info.Shape)
		}
		dims[i] = d.Size
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("manifest: constant output %q: %w", info.Name, err)
	}
	t := &Tensor{Type: info.Type, Shape: dims}
	if err := t.UnmarshalJSON(mustJSON(tensorJSON{Type: info.Type, Shape: dims, Data: raw})); err != nil {
		return nil, fmt.Errorf("manifest: constant output %q: %w", info.Name, err)
	}
	return t, nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
