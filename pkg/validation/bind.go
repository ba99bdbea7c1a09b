package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Bind assigns the members of a decoded JSON object to the json-tagged fields
// of dest, a pointer to one of the input structs. A member whose value has
// the wrong JSON type leaves its field unset and is reported in the returned
// Errors, so the remaining rules still run against the other fields.
func Bind(members map[string]json.RawMessage, dest interface{}) Errors {
	errs := Errors{}
	v := reflect.ValueOf(dest).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := jsonName(t.Field(i))
		raw, ok := members[name]
		if name == "" || !ok {
			continue
		}
		field := v.Field(i)
		if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
			field.Set(reflect.Zero(field.Type()))
			addTypeErrors(errs, name, raw, field.Type())
		}
	}
	return errs
}

// WithTypeErrors combines the rule failures of a validator with the type
// mismatches found by Bind. A mismatched field, or an array with a
// mismatched element, reports only its type messages.
func WithTypeErrors(rules, types Errors) Errors {
	out := Errors{}
	for field, msgs := range rules {
		if mismatched(types, field) {
			continue
		}
		out[field] = append([]string(nil), msgs...)
	}
	out.Merge(types)
	return out
}

func mismatched(types Errors, field string) bool {
	for name := range types {
		if name == field || strings.HasPrefix(name, field+".") {
			return true
		}
	}
	return false
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" || f.PkgPath != "" {
		return ""
	}
	if name := strings.Split(tag, ",")[0]; name != "" {
		return name
	}
	return f.Name
}

// addTypeErrors reports arrays element by element, as roles.1
func addTypeErrors(errs Errors, name string, raw json.RawMessage, t reflect.Type) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Slice {
		errs.Add(name, msgType(name, t.Kind()))
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		errs.Add(name, msgArray(name))
		return
	}
	elem := t.Elem()
	for i, item := range items {
		if err := json.Unmarshal(item, reflect.New(elem).Interface()); err != nil {
			key := name + "." + strconv.Itoa(i)
			errs.Add(key, msgType(key, elem.Kind()))
		}
	}
	if !mismatched(errs, name) {
		errs.Add(name, msgFormat(name))
	}
}

func msgType(field string, kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return fmt.Sprintf("The %s must be a string.", attribute(field))
	case reflect.Bool:
		return fmt.Sprintf("The %s field must be true or false.", attribute(field))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("The %s must be an integer.", attribute(field))
	default:
		return msgFormat(field)
	}
}

func msgArray(field string) string {
	return fmt.Sprintf("The %s must be an array.", attribute(field))
}
