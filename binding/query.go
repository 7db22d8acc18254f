// Copyright 2025 The Crest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package binding

import (
	"encoding"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

const (
	tagQuery   = "query"
	tagDefault = "default"
)

var (
	durationType        = reflect.TypeFor[time.Duration]()
	timeType            = reflect.TypeFor[time.Time]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

type queryField struct {
	index []int
	name  string
	def   string
	typ   reflect.Type
}

var queryFields sync.Map // reflect.Type -> []queryField

// fieldsOf lists the tagged fields of t, embedded structs included.
// Results are cached per type.
func fieldsOf(t reflect.Type) []queryField {
	if cached, ok := queryFields.Load(t); ok {
		return cached.([]queryField)
	}
	fields := collectFields(t, nil)
	queryFields.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int) []queryField {
	var fields []queryField
	for i := range t.NumField() {
		sf := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			fields = append(fields, collectFields(sf.Type, index)...)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get(tagQuery), ",")
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, queryField{
			index: index,
			name:  name,
			def:   sf.Tag.Get(tagDefault),
			typ:   sf.Type,
		})
	}
	return fields
}

func bindQuery(values url.Values, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrOutMustBePointer
	}
	elem := rv.Elem()

	for _, f := range fieldsOf(elem.Type()) {
		raw, ok := values[f.name]
		if !ok || len(raw) == 0 {
			if f.def == "" {
				continue
			}
			raw = []string{f.def}
		}
		fv := elem.FieldByIndex(f.index)
		if err := setValues(fv, raw); err != nil {
			return &BindError{
				Field:  f.name,
				Source: SourceQuery,
				Value:  strings.Join(raw, ","),
				Type:   f.typ,
				Err:    err,
			}
		}
	}
	return nil
}

// setValues assigns raw to fv. Slices take repeated parameters or a
// comma-separated list; other kinds take the first value.
func setValues(fv reflect.Value, raw []string) error {
	if fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() != reflect.Uint8 {
		var items []string
		for _, r := range raw {
			for part := range strings.SplitSeq(r, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
		}
		slice := reflect.MakeSlice(fv.Type(), len(items), len(items))
		for i, item := range items {
			if err := setValue(slice.Index(i), item); err != nil {
				return err
			}
		}
		fv.Set(slice)
		return nil
	}
	return setValue(fv, raw[0])
}

func setValue(fv reflect.Value, s string) error {
	if fv.Kind() == reflect.Pointer {
		ptr := reflect.New(fv.Type().Elem())
		if err := setValue(ptr.Elem(), s); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}

	switch fv.Type() {
	case durationType:
		d, err := cast.ToDurationE(s)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	case timeType:
		t, err := cast.ToTimeE(s)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}
	if fv.CanAddr() && fv.Addr().Type().Implements(textUnmarshalerType) {
		return fv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(s)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(s)
		if err != nil {
			return err
		}
		if fv.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, fv.Type())
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if strings.HasPrefix(s, "-") {
			return fmt.Errorf("negative value for %s", fv.Type())
		}
		n, err := cast.ToUint64E(s)
		if err != nil {
			return err
		}
		if fv.OverflowUint(n) {
			return fmt.Errorf("value %d overflows %s", n, fv.Type())
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, fv.Type())
	}
	return nil
}
