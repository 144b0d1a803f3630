// internal/engine/onnxrt/convert.go
package onnxrt

import (
	"fmt"
	"slices"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/SyedDaiam9101/session-service/internal/engine"
)

var elementTypes = map[ort.TensorElementDataType]engine.ElementType{
	ort.TensorElementDataTypeFloat:   engine.Float32,
	ort.TensorElementDataTypeDouble:  engine.Float64,
	ort.TensorElementDataTypeInt8:    engine.Int8,
	ort.TensorElementDataTypeInt16:   engine.Int16,
	ort.TensorElementDataTypeInt32:   engine.Int32,
	ort.TensorElementDataTypeInt64:   engine.Int64,
	ort.TensorElementDataTypeUint8:   engine.Uint8,
	ort.TensorElementDataTypeUint16:  engine.Uint16,
	ort.TensorElementDataTypeUint32:  engine.Uint32,
	ort.TensorElementDataTypeUint64:  engine.Uint64,
	ort.TensorElementDataTypeBool:    engine.Bool,
	ort.TensorElementDataTypeString:  engine.String,
	ort.TensorElementDataTypeFloat16: engine.Float16,
}

func convertInfos(infos []ort.InputOutputInfo) []engine.ValueInfo {
	out := make([]engine.ValueInfo, len(infos))
	for i, info := range infos {
		shape := make(engine.Shape, len(info.Dimensions))
		for j, d := range info.Dimensions {
			// onnxruntime reports symbolic and unknown dimensions as -1
			if d < 0 {
				shape[j] = engine.UnknownDim()
			} else {
				shape[j] = engine.FixedDim(d)
			}
		}
		out[i] = engine.ValueInfo{
			Name:  info.Name,
			Shape: shape,
			Type:  elementTypes[info.DataType],
		}
	}
	return out
}

func infoNames(infos []ort.InputOutputInfo) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

func convertMetadata(meta *ort.ModelMetadata) (engine.ModelMetadata, error) {
	var (
		m   engine.ModelMetadata
		err error
	)
	if m.Producer, err = meta.GetProducerName(); err != nil {
		return m, fmt.Errorf("failed to read producer: %w", err)
	}
	if m.GraphName, err = meta.GetGraphName(); err != nil {
		return m, fmt.Errorf("failed to read graph name: %w", err)
	}
	if m.Domain, err = meta.GetDomain(); err != nil {
		return m, fmt.Errorf("failed to read domain: %w", err)
	}
	if m.Description, err = meta.GetDescription(); err != nil {
		return m, fmt.Errorf("failed to read description: %w", err)
	}
	if m.Version, err = meta.GetVersion(); err != nil {
		return m, fmt.Errorf("failed to read version: %w", err)
	}

	keys, err := meta.GetCustomMetadataMapKeys()
	if err != nil {
		return m, fmt.Errorf("failed to read custom metadata keys: %w", err)
	}
	if len(keys) > 0 {
		m.Custom = make(map[string]string, len(keys))
	}
	for _, key := range keys {
		value, ok, err := meta.LookupCustomMetadataMap(key)
		if err != nil {
			return m, fmt.Errorf("failed to read custom metadata %q: %w", key, err)
		}
		if ok {
			m.Custom[key] = value
		}
	}
	return m, nil
}

func newValue[T ort.TensorData](shape []int64, data []T) (ort.ArbitraryTensor, error) {
	t, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// toOrt copies an engine tensor into an onnxruntime tensor.
func toOrt(t *engine.Tensor) (ort.ArbitraryTensor, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch d := t.Data.(type) {
	case []float32:
		return newValue(t.Shape, slices.Clone(d))
	case []float64:
		return newValue(t.Shape, slices.Clone(d))
	case []int8:
		return newValue(t.Shape, slices.Clone(d))
	case []int16:
		return newValue(t.Shape, slices.Clone(d))
	case []int32:
		return newValue(t.Shape, slices.Clone(d))
	case []int64:
		return newValue(t.Shape, slices.Clone(d))
	case []uint8:
		return newValue(t.Shape, slices.Clone(d))
	case []uint16:
		if t.Type == engine.Float16 {
			break
		}
		return newValue(t.Shape, slices.Clone(d))
	case []uint32:
		return newValue(t.Shape, slices.Clone(d))
	case []uint64:
		return newValue(t.Shape, slices.Clone(d))
	}
	return nil, fmt.Errorf("%w: element type %s is not supported by the binding", engine.ErrInvalidTensor, t.Type)
}

// fromOrt copies an onnxruntime output into an engine tensor.
func fromOrt(v ort.ArbitraryTensor) (*engine.Tensor, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[float64]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[int8]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[int16]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[int32]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[int64]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[uint8]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[uint16]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[uint32]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case *ort.Tensor[uint64]:
		return engine.NewTensor(t.GetShape(), slices.Clone(t.GetData()))
	case nil:
		return nil, fmt.Errorf("onnxruntime returned no value")
	}
	return nil, fmt.Errorf("unsupported output value %T", v)
}
