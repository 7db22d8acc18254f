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
	"strconv"
	"strings"
)

// ParamKind is the type marker of a template parameter.
// The declaration order is also the match priority of single-segment kinds.
type ParamKind uint8

const (
	ParamInt ParamKind = iota
	ParamUint
	ParamFloat
	ParamString
	ParamPath
)

// scalarKinds is the number of single-segment parameter kinds (everything but ParamPath).
const scalarKinds = int(ParamPath)

var paramKindNames = [...]string{
	ParamInt:    "int",
	ParamUint:   "uint",
	ParamFloat:  "float",
	ParamString: "string",
	ParamPath:   "path",
}

// paramAliases maps every accepted spelling inside <...> to its kind.
var paramAliases = map[string]ParamKind{
	"int":    ParamInt,
	"uint":   ParamUint,
	"float":  ParamFloat,
	"double": ParamFloat,
	"string": ParamString,
	"str":    ParamString,
	"path":   ParamPath,
}

func (k ParamKind) String() string {
	if int(k) < len(paramKindNames) {
		return paramKindNames[k]
	}
	return "ParamKind(" + strconv.Itoa(int(k)) + ")"
}

// SegmentKind discriminates template segments.
type SegmentKind uint8

const (
	SegmentLiteral SegmentKind = iota
	SegmentParam
)

// Segment is one slash-delimited element of a parsed template.
type Segment struct {
	Kind    SegmentKind
	Literal string    // set for SegmentLiteral
	Param   ParamKind // set for SegmentParam
}

func (s Segment) String() string {
	if s.Kind == SegmentLiteral {
		return s.Literal
	}
	return "<" + s.Param.String() + ">"
}

// Template is a parsed path template such as "/users/<int>/files/<path>".
//
// Empty segments are dropped while parsing, so "/a//b/" and "/a/b" are the
// same template. A Template is immutable.
type Template struct {
	raw      string
	segments []Segment
	params   []ParamKind
}

// ParseTemplate parses a path template.
//
// Errors wrap [ErrMalformedTemplate]:
//   - the template does not start with "/"
//   - a segment mixes literal text with a parameter ("id<int>")
//   - delimiters are unbalanced ("<int", "int>", "<<int>>")
//   - the parameter type is unknown ("<bool>")
//   - a <path> parameter is followed by further segments
func ParseTemplate(raw string) (Template, error) {
	if !strings.HasPrefix(raw, "/") {
		return Template{}, fmt.Errorf("%w: %q must start with '/'", ErrMalformedTemplate, raw)
	}

	t := Template{raw: raw}
	for part := range strings.SplitSeq(raw[1:], "/") {
		if part == "" {
			continue
		}
		if n := len(t.segments); n > 0 {
			if last := t.segments[n-1]; last.Kind == SegmentParam && last.Param == ParamPath {
				return Template{}, fmt.Errorf("%w: %q: <path> must be the final segment", ErrMalformedTemplate, raw)
			}
		}

		seg, err := parseSegment(part)
		if err != nil {
			return Template{}, fmt.Errorf("%w: %q: %s", ErrMalformedTemplate, raw, err.Error())
		}
		t.segments = append(t.segments, seg)
		if seg.Kind == SegmentParam {
			t.params = append(t.params, seg.Param)
		}
	}

	return t, nil
}

// MustParseTemplate is like [ParseTemplate] but panics on error.
func MustParseTemplate(raw string) Template {
	t, err := ParseTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func parseSegment(part string) (Segment, error) {
	open := strings.Count(part, "<")
	closing := strings.Count(part, ">")
	if open == 0 && closing == 0 {
		return Segment{Kind: SegmentLiteral, Literal: part}, nil
	}
	if open != 1 || closing != 1 {
		return Segment{}, fmt.Errorf("unbalanced parameter delimiters in %q", part)
	}
	if part[0] != '<' || part[len(part)-1] != '>' {
		if strings.Index(part, "<") > strings.Index(part, ">") {
			return Segment{}, fmt.Errorf("unbalanced parameter delimiters in %q", part)
		}
		return Segment{}, fmt.Errorf("segment %q mixes literal text and a parameter", part)
	}

	name := part[1 : len(part)-1]
	kind, ok := paramAliases[name]
	if !ok {
		return Segment{}, fmt.Errorf("unknown parameter type %q", name)
	}
	return Segment{Kind: SegmentParam, Param: kind}, nil
}

// joinTemplates prefixes t with the literal segments of prefix.
func joinTemplates(prefix []Segment, t Template) Template {
	if len(prefix) == 0 {
		return t
	}
	segs := make([]Segment, 0, len(prefix)+len(t.segments))
	segs = append(segs, prefix...)
	segs = append(segs, t.segments...)

	out := Template{segments: segs, params: t.params}
	out.raw = out.String()
	return out
}

// Raw returns the template text as it was registered.
func (t Template) Raw() string { return t.raw }

// Segments returns a copy of the parsed segments.
func (t Template) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// Params returns the parameter tag sequence of the template.
func (t Template) Params() []ParamKind {
	return append([]ParamKind(nil), t.params...)
}

// String returns the canonical form: one slash between segments, canonical
// parameter names, no trailing slash.
func (t Template) String() string {
	if len(t.segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range t.segments {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}

// Build renders a concrete path by substituting args into the parameter
// segments in order. Arguments are formatted with their natural Go form.
func (t Template) Build(args ...any) (string, error) {
	if len(args) != len(t.params) {
		return "", fmt.Errorf("%w: %s expects %d arguments, got %d", ErrRuleArgs, t, len(t.params), len(args))
	}

	var b strings.Builder
	i := 0
	for _, s := range t.segments {
		b.WriteByte('/')
		if s.Kind == SegmentLiteral {
			b.WriteString(s.Literal)
			continue
		}
		text := fmt.Sprint(args[i])
		if _, ok := parseParam(s.Param, text); !ok {
			return "", fmt.Errorf("%w: argument %d (%q) is not a valid %s", ErrRuleArgs, i, text, s.Param)
		}
		b.WriteString(text)
		i++
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}

// parseParam is the single acceptance and conversion routine for captured
// segments. The trie calls it while matching and keeps the converted value,
// so a segment is accepted exactly when it converts.
//
// ParamPath values are not routed through here by the trie; the case exists
// for [Template.Build].
func parseParam(kind ParamKind, s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	switch kind {
	case ParamInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case ParamUint:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case ParamFloat:
		// ParseFloat also accepts "inf", "nan", hex mantissas and digit
		// separators; none of those are decimal path values.
		for i := 0; i < len(s); i++ {
			switch c := s[i]; {
			case c >= '0' && c <= '9', c == '+', c == '-', c == '.', c == 'e', c == 'E':
			default:
				return nil, false
			}
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case ParamString:
		if strings.IndexByte(s, '/') >= 0 {
			return nil, false
		}
		return s, true
	case ParamPath:
		return s, true
	default:
		return nil, false
	}
}
