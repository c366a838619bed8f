package render

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aymerick/raymond/ast"
)

// builtinHelpers are resolved by raymond, never by the data context.
var builtinHelpers = map[string]bool{
	"if":     true,
	"unless": true,
	"with":   true,
	"each":   true,
	"log":    true,
	"lookup": true,
	"equal":  true,
}

// sameScopeBlocks render their bodies against the enclosing context.
var sameScopeBlocks = map[string]bool{
	"if":     true,
	"unless": true,
}

// strictChecker rejects lookups that do not resolve against the root context.
// Bodies of blocks that shift the context (each, with, custom helpers) are not checked,
// their inverse sections are.
type strictChecker struct {
	data    reflect.Value
	helpers map[string]bool
}

func (s *strictChecker) program(p *ast.Program) error {
	if p == nil {
		return nil
	}
	for _, node := range p.Body {
		if err := s.node(node); err != nil {
			return err
		}
	}
	return nil
}

func (s *strictChecker) node(n ast.Node) error {
	switch n := n.(type) {
	case *ast.MustacheStatement:
		return s.expression(n.Expression)
	case *ast.BlockStatement:
		if err := s.call(n.Expression); err != nil {
			return err
		}
		if s.helperName(n.Expression) == "each" {
			if err := s.iterable(n.Expression); err != nil {
				return err
			}
		}
		if sameScopeBlocks[s.helperName(n.Expression)] {
			if err := s.program(n.Program); err != nil {
				return err
			}
		}
		return s.program(n.Inverse)
	case *ast.SubExpression:
		return s.call(n.Expression)
	case *ast.PathExpression:
		return s.path(n)
	}
	return nil
}

// expression handles a mustache: a bare path is a lookup unless it names a helper.
func (s *strictChecker) expression(e *ast.Expression) error {
	if e == nil {
		return nil
	}
	if len(e.Params) == 0 && e.Hash == nil {
		if p, ok := e.Path.(*ast.PathExpression); ok && !s.isHelper(p) {
			return s.path(p)
		}
	}
	return s.call(e)
}

// call checks the arguments of a helper invocation.
func (s *strictChecker) call(e *ast.Expression) error {
	if e == nil {
		return nil
	}
	if sub, ok := e.Path.(*ast.SubExpression); ok {
		if err := s.call(sub.Expression); err != nil {
			return err
		}
	}
	for _, param := range e.Params {
		if err := s.node(param); err != nil {
			return err
		}
	}
	if e.Hash != nil {
		for _, pair := range e.Hash.Pairs {
			if err := s.node(pair.Val); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *strictChecker) helperName(e *ast.Expression) string {
	if e == nil {
		return ""
	}
	if p, ok := e.Path.(*ast.PathExpression); ok && len(p.Parts) == 1 {
		return p.Parts[0]
	}
	return ""
}

func (s *strictChecker) isHelper(p *ast.PathExpression) bool {
	if len(p.Parts) != 1 || p.Data || p.Depth > 0 {
		return false
	}
	return builtinHelpers[p.Parts[0]] || s.helpers[p.Parts[0]]
}

func (s *strictChecker) path(p *ast.PathExpression) error {
	if p.Data {
		return nil
	}
	_, err := s.resolve(p)
	return err
}

func (s *strictChecker) resolve(p *ast.PathExpression) (reflect.Value, error) {
	if p.Depth > 0 {
		return reflect.Value{}, fmt.Errorf("%q refers to a parent scope that does not exist", p.Original)
	}
	cur := s.data
	for _, part := range p.Parts {
		if part == "this" || part == "." {
			continue
		}
		next, ok := field(cur, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%q not defined in %s", p.Original, describe(cur))
		}
		cur = next
	}
	return cur, nil
}

// iterable rejects each over a scalar. raymond renders nothing for it, so {{#each this}}
// against the source string would silently drop the block.
func (s *strictChecker) iterable(e *ast.Expression) error {
	if len(e.Params) == 0 {
		return nil
	}
	p, ok := e.Params[0].(*ast.PathExpression)
	if !ok || p.Data {
		return nil
	}
	v, err := s.resolve(p)
	if err != nil {
		return err
	}
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return nil
	}
	return fmt.Errorf("each over %q: cannot iterate a %s", p.Original, v.Kind())
}

// field resolves name on v the way raymond does: map keys, struct fields (by name or
// `handlebars` tag) and methods.
func field(v reflect.Value, name string) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		if v.Kind() == reflect.Pointer {
			if m := v.MethodByName(name); m.IsValid() {
				return m, true
			}
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, false
	}

	if m := v.MethodByName(name); m.IsValid() {
		return m, true
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		val := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		return val, val.IsValid()
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if tag := f.Tag.Get("handlebars"); tag != "" && tag == name {
				return v.Field(i), true
			}
			if strings.EqualFold(f.Name, name) {
				return v.Field(i), true
			}
		}
	}
	return reflect.Value{}, false
}

func describe(v reflect.Value) string {
	if !v.IsValid() {
		return "empty context"
	}
	return v.Type().String()
}
