package domain

import (
	"fmt"
	"maps"
	"reflect"
)

// Metadata — произвольные параметры задачи и сообщения.
//
// Допускаются только скаляры и (вложенные) массивы/словари скаляров.
type Metadata map[string]any

// Validate проверяет структуру metadata рекурсивно.
func (m Metadata) Validate() error {
	for k, v := range m {
		if err := validateMetadataValue(v); err != nil {
			return newValidationError("metadata."+k, err.Error(), ErrInvalidMetadata)
		}
	}
	return nil
}

// Merge возвращает копию m, дополненную значениями other.
// Значения other перекрывают значения m.
func (m Metadata) Merge(other Metadata) Metadata {
	if len(m) == 0 && len(other) == 0 {
		return nil
	}
	out := make(Metadata, len(m)+len(other))
	maps.Copy(out, m)
	maps.Copy(out, other)
	return out
}

// Equal сравнивает metadata структурно. nil и пустая metadata равны.
func (m Metadata) Equal(other Metadata) bool {
	if len(m) == 0 && len(other) == 0 {
		return true
	}
	return reflect.DeepEqual(map[string]any(m), map[string]any(other))
}

// String возвращает строковое значение по ключу.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func validateMetadataValue(v any) error {
	switch val := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	case []any:
		for i, item := range val {
			if err := validateMetadataValue(item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case []string:
		return nil
	case map[string]any:
		for k, item := range val {
			if err := validateMetadataValue(item); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		return nil
	case Metadata:
		return validateMetadataValue(map[string]any(val))
	default:
		return fmt.Errorf("unsupported value of type %T", v)
	}
}
