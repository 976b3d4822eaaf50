package moodle

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"

	"github.com/spf13/cast"
)

// encodeParams flattens caller params into form values using the bracket
// notation the webservice expects: list[0]=a, obj[key]=b, nested arbitrarily.
// Nil values are dropped.
func encodeParams(form url.Values, params map[string]any) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := encodeValue(form, k, params[k]); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(form url.Values, key string, value any) error {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if b, ok := value.([]byte); ok {
			form.Set(key, string(b))
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(form, fmt.Sprintf("%s[%d]", key, i), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		values := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := cast.ToStringE(iter.Key().Interface())
			if err != nil {
				return fmt.Errorf("param %s: unsupported map key: %w", key, err)
			}
			keys = append(keys, k)
			values[k] = iter.Value().Interface()
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := encodeValue(form, fmt.Sprintf("%s[%s]", key, k), values[k]); err != nil {
				return err
			}
		}
		return nil
	case reflect.Bool:
		if rv.Bool() {
			form.Set(key, "1")
		} else {
			form.Set(key, "0")
		}
		return nil
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Errorf("param %s: %w", key, err)
	}
	form.Set(key, s)
	return nil
}
