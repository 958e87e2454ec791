package convert

import (
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
)

// RvalueData carries an rvalue conversion between its two stages. The source
// handle must stay alive until Value is called.
type RvalueData[T any] struct {
	c       *Converter
	err     error
	s1      stage1
	storage T
	source  host.Handle
	done    bool
}

// Stage1 finds the first converter able to produce a T from h.
func Stage1[T any](c *Converter, h host.Handle) *RvalueData[T] {
	return &RvalueData[T]{c: c, s1: c.stage1(h, Key[T](c)), source: h}
}

// Convertible reports whether stage 1 found a converter.
func (d *RvalueData[T]) Convertible() bool {
	return d.s1.ok
}

// Constructed reports whether stage 2 has run.
func (d *RvalueData[T]) Constructed() bool {
	return d.done
}

// Value runs stage 2 on first use and returns the result. Later calls return
// the same value or error.
func (d *RvalueData[T]) Value() (T, error) {
	if !d.s1.ok {
		var zero T
		k := Key[T](d.c)
		return zero, errors.NoRvalueConverter(d.c.name(k), d.c.Runtime.TypeName(d.source))
	}
	if d.s1.construct == nil {
		return *(*T)(d.s1.convertible), nil
	}
	if !d.done {
		d.done = true
		d.err = d.s1.construct(d.source, d.s1.convertible, unsafe.Pointer(&d.storage))
	}
	return d.storage, d.err
}
