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

package router

import (
	"fmt"
	"reflect"
	"slices"
)

// Handler is the invocation capability stored in a rule.
//
// Params declares the parameter kinds the handler accepts, in order. The
// router compares it with the template's tags at registration time and
// refuses the rule on any difference, so Serve always receives args whose
// dynamic types match the declaration: int64, uint64, float64 or string.
type Handler interface {
	Params() []ParamKind
	Serve(req *Request, res *Response, args []any) error
}

// Value constrains the Go types a typed handler can bind.
// <path> parameters bind to string.
type Value interface {
	~int64 | ~uint64 | ~float64 | ~string
}

var (
	requestType  = reflect.TypeFor[*Request]()
	responseType = reflect.TypeFor[*Response]()
	errorType    = reflect.TypeFor[error]()
)

// kindOf maps a Go parameter type to its parameter kind.
func kindOf(t reflect.Type) (ParamKind, bool) {
	switch t.Kind() {
	case reflect.Int64:
		return ParamInt, true
	case reflect.Uint64:
		return ParamUint, true
	case reflect.Float64:
		return ParamFloat, true
	case reflect.String:
		return ParamString, true
	default:
		return 0, false
	}
}

// compatible reports whether a handler declaring got can receive a capture
// tagged want. Strings receive both <string> and <path> captures.
func compatible(want, got ParamKind) bool {
	if want == got {
		return true
	}
	return got == ParamString && want == ParamPath
}

// checkSignature compares a template's tag sequence with a handler's declaration.
func checkSignature(tags, declared []ParamKind) error {
	if len(tags) != len(declared) {
		return fmt.Errorf("%w: template binds %d parameters %v, handler declares %d %v",
			ErrHandlerSignatureMismatch, len(tags), tags, len(declared), declared)
	}
	for i := range tags {
		if !compatible(tags[i], declared[i]) {
			return fmt.Errorf("%w: parameter %d is <%s> in the template but %s in the handler",
				ErrHandlerSignatureMismatch, i, tags[i], declared[i])
		}
	}
	return nil
}

// funcHandler adapts an arbitrary function through reflection.
//
// Accepted shapes, where P is int64, uint64, float64 or string (or a named
// type with one of those underlying types):
//
//	func(P...) [error]
//	func(*Request, P...) [error]
//	func(*Request, *Response, P...) [error]
type funcHandler struct {
	fn         reflect.Value
	in         []reflect.Type
	params     []ParamKind
	withReq    bool
	withRes    bool
	returnsErr bool
}

// Func wraps fn in a [Handler], validating its shape. Errors wrap
// [ErrHandlerSignatureMismatch] or [ErrNilHandler].
func Func(fn any) (Handler, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || (v.Kind() == reflect.Func && v.IsNil()) {
		return nil, ErrNilHandler
	}
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: handler is %T, not a function", ErrHandlerSignatureMismatch, fn)
	}

	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic handlers are not supported", ErrHandlerSignatureMismatch)
	}

	h := &funcHandler{fn: v}
	i := 0
	if t.NumIn() > 0 && t.In(0) == requestType {
		h.withReq = true
		i = 1
		if t.NumIn() > 1 && t.In(1) == responseType {
			h.withRes = true
			i = 2
		}
	}
	for ; i < t.NumIn(); i++ {
		in := t.In(i)
		kind, ok := kindOf(in)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d has unsupported type %s", ErrHandlerSignatureMismatch, i, in)
		}
		h.in = append(h.in, in)
		h.params = append(h.params, kind)
	}

	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0) == errorType:
		h.returnsErr = true
	default:
		return nil, fmt.Errorf("%w: handler must return nothing or error, got %s", ErrHandlerSignatureMismatch, t)
	}

	return h, nil
}

// MustFunc is like [Func] but panics on error.
func MustFunc(fn any) Handler {
	h, err := Func(fn)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *funcHandler) Params() []ParamKind { return slices.Clone(h.params) }

func (h *funcHandler) Serve(req *Request, res *Response, args []any) error {
	in := make([]reflect.Value, 0, len(args)+2)
	if h.withReq {
		in = append(in, reflect.ValueOf(req))
	}
	if h.withRes {
		in = append(in, reflect.ValueOf(res))
	}
	for i, a := range args {
		v := reflect.ValueOf(a)
		if v.Type() != h.in[i] {
			v = v.Convert(h.in[i])
		}
		in = append(in, v)
	}

	out := h.fn.Call(in)
	if h.returnsErr {
		if err, _ := out[0].Interface().(error); err != nil {
			return err
		}
	}
	return nil
}

// typedHandler backs the generic adapters. Its parameter list comes from
// the type arguments, so the compiler checks the handler body.
type typedHandler struct {
	params []ParamKind
	serve  func(req *Request, res *Response, args []any) error
}

func (h *typedHandler) Params() []ParamKind { return slices.Clone(h.params) }

func (h *typedHandler) Serve(req *Request, res *Response, args []any) error {
	return h.serve(req, res, args)
}

func kindFor[T Value]() ParamKind {
	k, _ := kindOf(reflect.TypeFor[T]())
	return k
}

// bind converts a capture to T. Named types need a reflective conversion.
func bind[T Value](v any) T {
	if t, ok := v.(T); ok {
		return t
	}
	return reflect.ValueOf(v).Convert(reflect.TypeFor[T]()).Interface().(T)
}

// Handle0 adapts a handler for templates without parameters.
func Handle0(fn func(*Request, *Response) error) Handler {
	return &typedHandler{
		serve: func(req *Request, res *Response, _ []any) error {
			return fn(req, res)
		},
	}
}

// Handle1 adapts a handler for templates with one parameter.
//
// Example:
//
//	r.GET("/items/<int>", router.Handle1(func(req *router.Request, res *router.Response, id int64) error {
//	    return res.JSON(http.StatusOK, lookup(id))
//	}))
func Handle1[A Value](fn func(*Request, *Response, A) error) Handler {
	return &typedHandler{
		params: []ParamKind{kindFor[A]()},
		serve: func(req *Request, res *Response, args []any) error {
			return fn(req, res, bind[A](args[0]))
		},
	}
}

// Handle2 adapts a handler for templates with two parameters.
func Handle2[A, B Value](fn func(*Request, *Response, A, B) error) Handler {
	return &typedHandler{
		params: []ParamKind{kindFor[A](), kindFor[B]()},
		serve: func(req *Request, res *Response, args []any) error {
			return fn(req, res, bind[A](args[0]), bind[B](args[1]))
		},
	}
}

// Handle3 adapts a handler for templates with three parameters.
func Handle3[A, B, C Value](fn func(*Request, *Response, A, B, C) error) Handler {
	return &typedHandler{
		params: []ParamKind{kindFor[A](), kindFor[B](), kindFor[C]()},
		serve: func(req *Request, res *Response, args []any) error {
			return fn(req, res, bind[A](args[0]), bind[B](args[1]), bind[C](args[2]))
		},
	}
}

// resolveHandler turns a registration argument into a Handler and the rule
// kind it implies.
func resolveHandler(h any) (Handler, RuleKind, error) {
	switch v := h.(type) {
	case nil:
		return nil, 0, ErrNilHandler
	case *typedHandler:
		if v == nil {
			return nil, 0, ErrNilHandler
		}
		return v, KindStatic, nil
	case Handler:
		return v, KindDynamic, nil
	default:
		fh, err := Func(h)
		if err != nil {
			return nil, 0, err
		}
		return fh, KindDynamic, nil
	}
}
