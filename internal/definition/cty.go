package definition

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// toNative converts an HCL value into plain Go values: numbers become
// float64, tuples and lists []any, objects and maps map[string]any.
func toNative(value cty.Value) (any, error) {
	if value.IsNull() || !value.IsKnown() {
		return nil, nil
	}

	valueType := value.Type()
	switch {
	case valueType == cty.String:
		return value.AsString(), nil

	case valueType == cty.Number:
		var number float64
		if err := gocty.FromCtyValue(value, &number); err != nil {
			return nil, fmt.Errorf("could not convert number: %w", err)
		}
		return number, nil

	case valueType == cty.Bool:
		return value.True(), nil

	case valueType.IsListType() || valueType.IsTupleType() || valueType.IsSetType():
		list := make([]any, 0, value.LengthInt())
		for iterator := value.ElementIterator(); iterator.Next(); {
			_, element := iterator.Element()
			native, err := toNative(element)
			if err != nil {
				return nil, err
			}
			list = append(list, native)
		}
		return list, nil

	case valueType.IsObjectType() || valueType.IsMapType():
		record := make(map[string]any, value.LengthInt())
		for iterator := value.ElementIterator(); iterator.Next(); {
			key, element := iterator.Element()
			native, err := toNative(element)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			record[key.AsString()] = native
		}
		return record, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", valueType.FriendlyName())
	}
}
