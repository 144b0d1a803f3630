// internal/engine/types.go
package engine

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ElementType tags the element type of a tensor or a declared value.
type ElementType int

const (
	Undefined ElementType = iota
	Float32
	Float64
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Bool
	String
	Float16
)

var elementTypeNames = map[ElementType]string{
	Undefined: "undefined",
	Float32:   "float32",
	Float64:   "float64",
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Uint8:     "uint8",
	Uint16:    "uint16",
	Uint32:    "uint32",
	Uint64:    "uint64",
	Bool:      "bool",
	String:    "string",
	Float16:   "float16",
}

func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(%d)", int(t))
}

// ParseElementType resolves a name such as "float32" to its ElementType.
func ParseElementType(name string) (ElementType, error) {
	for t, n := range elementTypeNames {
		if n == strings.ToLower(name) {
			return t, nil
		}
	}
	return Undefined, fmt.Errorf("unknown element type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t ElementType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ElementType) UnmarshalText(text []byte) error {
	parsed, err := ParseElementType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Dim is one dimension of a declared shape. A dimension is either a fixed
// size, a symbolic name (for example "batch"), or unknown.
type Dim struct {
	Size   int64  `json:"size,omitempty" yaml:"size,omitempty"`
	Symbol string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
}

// FixedDim returns a dimension of known size.
func FixedDim(size int64) Dim { return Dim{Size: size} }

// SymbolicDim returns a named dimension of unknown size.
func SymbolicDim(name string) Dim { return Dim{Size: -1, Symbol: name} }

// UnknownDim returns an anonymous dimension of unknown size.
func UnknownDim() Dim { return Dim{Size: -1} }

// Known reports whether the dimension has a fixed size.
func (d Dim) Known() bool { return d.Size >= 0 && d.Symbol == "" }

func (d Dim) String() string {
	switch {
	case d.Symbol != "":
		return d.Symbol
	case d.Size < 0:
		return "?"
	default:
		return strconv.FormatInt(d.Size, 10)
	}
}

// Shape is the ordered list of dimensions of a declared value.
type Shape []Dim

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Accepts reports whether a concrete tensor shape is compatible.
func (s Shape) Accepts(dims []int64) bool {
	if len(s) != len(dims) {
		return false
	}
	for i, d := range s {
		if d.Known() && d.Size != dims[i] {
			return false
		}
	}
	return true
}

// ValueInfo describes one declared model input or output.
type ValueInfo struct {
	Name  string      `json:"name" yaml:"name"`
	Shape Shape       `json:"shape" yaml:"shape"`
	Type  ElementType `json:"type" yaml:"type"`
}

// CloneValueInfos returns a deep copy of infos.
func CloneValueInfos(infos []ValueInfo) []ValueInfo {
	if infos == nil {
		return nil
	}
	out := make([]ValueInfo, len(infos))
	for i, info := range infos {
		out[i] = ValueInfo{Name: info.Name, Shape: slices.Clone(info.Shape), Type: info.Type}
	}
	return out
}

// Names returns the names of infos in declared order.
func Names(infos []ValueInfo) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// ModelMetadata is descriptive information about a loaded model.
type ModelMetadata struct {
	Producer    string            `json:"producer" yaml:"producer"`
	GraphName   string            `json:"graph_name" yaml:"graph_name"`
	Domain      string            `json:"domain" yaml:"domain"`
	Description string            `json:"description" yaml:"description"`
	Version     int64             `json:"version" yaml:"version"`
	Custom      map[string]string `json:"custom_metadata,omitempty" yaml:"custom_metadata,omitempty"`
}

// Clone returns a deep copy of m.
func (m ModelMetadata) Clone() ModelMetadata {
	m.Custom = maps.Clone(m.Custom)
	return m
}

// Options configures an engine instance. Every field is interpreted by the
// engine; the zero value selects engine defaults.
type Options struct {
	// GraphOptimizationLevel is one of "disabled", "basic", "extended", "all".
	GraphOptimizationLevel string `mapstructure:"graph_optimization_level"`
	IntraOpThreads         int    `mapstructure:"intra_op_threads"`
	InterOpThreads         int    `mapstructure:"inter_op_threads"`
	// ExecutionProviders is the provider preference list, e.g. ["cuda", "cpu"].
	ExecutionProviders []string `mapstructure:"execution_providers"`
	LogSeverity        int      `mapstructure:"log_severity"`
	EnableProfiling    bool     `mapstructure:"enable_profiling"`
	// ProfilePrefix is the file name prefix used for profiling artifacts.
	ProfilePrefix string `mapstructure:"profile_prefix"`
}

// GraphOptimizationLevels lists the accepted optimization level names.
var GraphOptimizationLevels = []string{"", "disabled", "basic", "extended", "all"}

// RunOptions configures a single run.
type RunOptions struct {
	// Tag is attached to the run in engine logs and profiles.
	Tag string `json:"tag,omitempty"`
	// Terminate asks the engine to abort the run.
	Terminate   bool `json:"terminate,omitempty"`
	LogSeverity int  `json:"log_severity,omitempty"`
}
