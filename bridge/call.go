package bridge

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
)

var (
	errorType  = reflect.TypeFor[error]()
	objectType = reflect.TypeFor[host.Object]()
	handleType = reflect.TypeFor[host.Handle]()
)

// callable adapts a Go function to host arguments.
type callable struct {
	fn      reflect.Value
	recv    reflect.Type
	params  []reflect.Type
	results []reflect.Type
	name    string
	hasErr  bool
}

// newCallable validates fn. With a receiver type T the first parameter must
// be *T and receives the object the host instance holds.
func newCallable(name string, fn any, recv reflect.Type) (*callable, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseRegister, "function name cannot be empty")
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
			GoType(fmt.Sprintf("%T", fn)).
			Detail("handler must be a function").
			Build()
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return nil, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
			GoType(ft.String()).
			Detail("variadic functions are not supported").
			Build()
	}

	c := &callable{fn: rv, name: name}
	first := 0
	if recv != nil {
		if ft.NumIn() == 0 || ft.In(0) != reflect.PointerTo(recv) {
			return nil, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
				GoType(ft.String()).
				Detail("%s must take *%s first", name, recv).
				Build()
		}
		c.recv = recv
		first = 1
	}
	for i := first; i < ft.NumIn(); i++ {
		c.params = append(c.params, ft.In(i))
	}

	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == errorType {
		c.hasErr = true
		n--
	}
	if n > 1 {
		return nil, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
			GoType(ft.String()).
			Detail("%s returns %d values; at most one plus an error is supported", name, n).
			Build()
	}
	for i := 0; i < n; i++ {
		c.results = append(c.results, ft.Out(i))
	}
	return c, nil
}

// call converts args and invokes the function. self is ignored without a
// receiver. A returned error is passed through unchanged.
func (c *callable) call(b *Bridge, self unsafe.Pointer, args []host.Handle) ([]reflect.Value, error) {
	if len(args) != len(c.params) {
		return nil, errors.New(errors.PhaseFromForeign, errors.KindTypeMismatch).
			Path(c.name).
			Detail("takes %d arguments, got %d", len(c.params), len(args)).
			Build()
	}

	in := make([]reflect.Value, 0, len(c.params)+1)
	if c.recv != nil {
		in = append(in, reflect.NewAt(c.recv, self))
	}
	for i, pt := range c.params {
		v := reflect.New(pt)
		if err := b.conv.FromForeignInto(args[i], pt, v.UnsafePointer()); err != nil {
			if e, ok := err.(*errors.Error); ok && e.Kind == errors.KindNoConverter && len(e.Path) == 0 {
				e.Path = []string{c.name, fmt.Sprintf("arg%d", i)}
			}
			return nil, err
		}
		switch pt {
		case objectType:
			defer v.Interface().(*host.Object).Close()
		case handleType:
			defer b.rt.Decref(*v.Interface().(*host.Handle))
		}
		in = append(in, v.Elem())
	}

	out := c.fn.Call(in)
	if c.hasErr {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}
	return out, nil
}

// result converts the function's value result to a new host reference; 0
// stands for None.
func (c *callable) result(b *Bridge, out []reflect.Value) (host.Handle, error) {
	if len(c.results) == 0 {
		return 0, nil
	}
	return b.toForeignValue(c.results[0], out[0])
}

// toForeignValue converts v, of static type t, to a new host reference.
func (b *Bridge) toForeignValue(t reflect.Type, v reflect.Value) (host.Handle, error) {
	tmp := reflect.New(t)
	tmp.Elem().Set(v)
	return b.conv.ToForeignAt(t, tmp.UnsafePointer())
}

// toForeignArgs converts Go values to new host references. On failure the
// references made so far are released.
func (b *Bridge) toForeignArgs(args []any) ([]host.Handle, error) {
	out := make([]host.Handle, 0, len(args))
	for i, a := range args {
		var h host.Handle
		var err error
		if a == nil {
			h = b.rt.None()
		} else {
			v := reflect.ValueOf(a)
			h, err = b.toForeignValue(v.Type(), v)
		}
		if err != nil {
			b.release(out)
			if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
				e.Path = []string{fmt.Sprintf("arg%d", i)}
			}
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (b *Bridge) release(hs []host.Handle) {
	for _, h := range hs {
		b.rt.Decref(h)
	}
}

// Function wraps fn as a native host function. Arguments convert from the
// host with FromForeign rules and the result with ToForeign rules.
// host.Object and host.Handle arguments are only valid during the call.
func (b *Bridge) Function(name string, fn any) (host.Handle, error) {
	c, err := newCallable(name, fn, nil)
	if err != nil {
		return 0, err
	}
	return b.rt.NewFunc(name, true, func(args []host.Handle) (host.Handle, error) {
		out, err := c.call(b, nil, args)
		if err != nil {
			return 0, err
		}
		return c.result(b, out)
	}), nil
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPClient -> get_http_client
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('_')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
