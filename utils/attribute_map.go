package utils

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a convenience wrapper for pulling out
// typed information from a map.
type AttributeMap map[string]interface{}

// Has returns whether or not the given name is in the map.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// TransformAttributeMap uses an attribute map to transform attributes to the prescribed format.
// Unknown attributes are rejected so typos in a config surface as errors.
func TransformAttributeMap[T any](attributes AttributeMap) (T, error) {
	var out T

	var forResult interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           forResult,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return out, err
	}
	return out, nil
}
