// internal/session/source.go
package session

import "fmt"

// Source is where a model is loaded from: a Path or Bytes.
type Source interface {
	isSource()
}

// Path is a model file on the local filesystem.
type Path string

// Bytes is a serialized model held in memory.
type Bytes []byte

func (Path) isSource()  {}
func (Bytes) isSource() {}

// SourceOf converts a loosely typed value, such as one decoded from
// configuration or a request, into a Source. Strings become paths and byte
// slices become in-memory models.
func SourceOf(v any) (Source, error) {
	switch v := v.(type) {
	case Source:
		return v, nil
	case string:
		return Path(v), nil
	case []byte:
		return Bytes(v), nil
	}
	return nil, &UnsupportedSourceTypeError{Type: fmt.Sprintf("%T", v)}
}
