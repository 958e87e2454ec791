package host

import (
	"bytes"
	"context"

	"github.com/wippyai/objbridge/arena"
	"github.com/wippyai/objbridge/resource"
	"go.uber.org/zap"
)

type seqObj struct {
	items []Handle
}

type funcObj struct {
	fn     CallFunc
	name   string
	native bool
}

type methodObj struct {
	self Handle
	fn   Handle
}

type classObj struct {
	attrs     map[string]Handle
	finalizer Finalizer
	name      string
	bases     []Handle
	mro       []Handle
	size      uint32
	native    bool
}

type instanceObj struct {
	payload any
	dict    map[string]Handle
	class   Handle
	addr    uint32
	block   uint32
	size    uint32
}

type weakObj struct {
	self   Handle
	target Handle
	next   Handle
}

// Local is an in-process host runtime backed by a resource table and an arena.
type Local struct {
	table *resource.Table
	arena arena.Arena
	none  Handle
	yes   Handle
	no    Handle
}

var _ Runtime = (*Local)(nil)

// NewLocal creates a runtime whose instance storage lives in a.
func NewLocal(a arena.Arena) *Local {
	l := &Local{
		table: resource.NewTable(),
		arena: a,
	}
	l.none = l.insert(KindNone, struct{}{})
	l.yes = l.insert(KindBool, true)
	l.no = l.insert(KindBool, false)
	return l
}

// Table exposes the underlying handle table, mainly for observers.
func (l *Local) Table() *resource.Table {
	return l.table
}

// Live returns the number of live objects, including the None/True/False
// singletons.
func (l *Local) Live() int {
	return l.table.Len()
}

// Close drops every object and releases the arena.
func (l *Local) Close(ctx context.Context) error {
	if err := l.table.Close(); err != nil {
		return err
	}
	return l.arena.Close(ctx)
}

func (l *Local) insert(kind Kind, v any) Handle {
	return Handle(l.table.Insert(uint32(kind), v))
}

func (l *Local) get(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}
	return l.table.Get(resource.Handle(h))
}

// Arena returns the linear memory holding instance headers and storage.
func (l *Local) Arena() arena.Arena {
	return l.arena
}

func (l *Local) Incref(h Handle) {
	if h != 0 {
		l.table.Retain(resource.Handle(h))
	}
}

func (l *Local) Decref(h Handle) {
	if h == 0 {
		return
	}
	v, freed := l.table.Release(resource.Handle(h))
	if freed {
		l.reclaim(v)
	}
}

func (l *Local) RefCount(h Handle) int {
	if h == 0 {
		return 0
	}
	return int(l.table.RefCount(resource.Handle(h)))
}

func (l *Local) reclaim(v any) {
	switch o := v.(type) {
	case *seqObj:
		for _, it := range o.items {
			l.Decref(it)
		}
	case *methodObj:
		l.Decref(o.self)
		l.Decref(o.fn)
	case *classObj:
		for _, a := range o.attrs {
			l.Decref(a)
		}
		for _, b := range o.bases {
			l.Decref(b)
		}
	case *instanceObj:
		l.reclaimInstance(o)
	case *weakObj:
		l.unlinkWeak(o)
	}
}

func (l *Local) Kind(h Handle) Kind {
	k, ok := l.table.Kind(resource.Handle(h))
	if !ok || h == 0 {
		return KindInvalid
	}
	return Kind(k)
}

func (l *Local) TypeName(h Handle) string {
	v, ok := l.get(h)
	if !ok {
		return KindInvalid.String()
	}
	if o, ok := v.(*instanceObj); ok {
		return l.ClassName(o.class)
	}
	return l.Kind(h).String()
}

// None returns a new reference to the None singleton.
func (l *Local) None() Handle {
	l.Incref(l.none)
	return l.none
}

// IsNone reports whether h is the None singleton.
func (l *Local) IsNone(h Handle) bool {
	return h == l.none
}

func (l *Local) NewBool(v bool) Handle {
	h := l.no
	if v {
		h = l.yes
	}
	l.Incref(h)
	return h
}

func (l *Local) NewInt(v int64) Handle     { return l.insert(KindInt, v) }
func (l *Local) NewFloat(v float64) Handle { return l.insert(KindFloat, v) }
func (l *Local) NewStr(v string) Handle    { return l.insert(KindStr, v) }

func (l *Local) NewBytes(v []byte) Handle {
	return l.insert(KindBytes, bytes.Clone(v))
}

func (l *Local) NewTuple(items ...Handle) Handle {
	return l.newSeq(KindTuple, items)
}

func (l *Local) NewList(items ...Handle) Handle {
	return l.newSeq(KindList, items)
}

func (l *Local) newSeq(kind Kind, items []Handle) Handle {
	owned := make([]Handle, len(items))
	for i, it := range items {
		l.Incref(it)
		owned[i] = it
	}
	return l.insert(kind, &seqObj{items: owned})
}

func (l *Local) Bool(h Handle) (bool, bool) {
	v, ok := l.get(h)
	if !ok || l.Kind(h) != KindBool {
		return false, false
	}
	return v.(bool), true
}

// Int accepts ints and bools.
func (l *Local) Int(h Handle) (int64, bool) {
	v, ok := l.get(h)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case int64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Float accepts floats, ints and bools.
func (l *Local) Float(h Handle) (float64, bool) {
	v, ok := l.get(h)
	if !ok {
		return 0, false
	}
	if f, ok := v.(float64); ok {
		return f, true
	}
	if i, ok := l.Int(h); ok {
		return float64(i), true
	}
	return 0, false
}

func (l *Local) Str(h Handle) (string, bool) {
	v, ok := l.get(h)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (l *Local) Bytes(h Handle) ([]byte, bool) {
	v, ok := l.get(h)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return bytes.Clone(b), true
}

// Items returns the borrowed items of a tuple or list.
func (l *Local) Items(h Handle) ([]Handle, bool) {
	v, ok := l.get(h)
	if !ok {
		return nil, false
	}
	s, ok := v.(*seqObj)
	if !ok {
		return nil, false
	}
	return append([]Handle(nil), s.items...), true
}

func (l *Local) logger() *zap.Logger {
	return Logger()
}
