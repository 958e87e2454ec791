package convert

import (
	"math"
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/registry"
)

type signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// RegisterBuiltins installs converters for bool, the integer and float
// types, string and []byte. It is meant to run as the registry bootstrap.
func RegisterBuiltins(c *Converter) {
	rt := c.Runtime

	registerScalar(c, "bool", host.KindBool,
		func(v bool) (host.Handle, error) { return rt.NewBool(v), nil },
		func(h host.Handle) (bool, error) {
			v, _ := rt.Bool(h)
			return v, nil
		})

	registerSigned[int](c)
	registerSigned[int8](c)
	registerSigned[int16](c)
	registerSigned[int32](c)
	registerSigned[int64](c)
	registerUnsigned[uint](c)
	registerUnsigned[uint8](c)
	registerUnsigned[uint16](c)
	registerUnsigned[uint32](c)
	registerUnsigned[uint64](c)
	registerUnsigned[uintptr](c)

	registerScalar(c, "float", host.KindFloat,
		func(v float64) (host.Handle, error) { return rt.NewFloat(v), nil },
		func(h host.Handle) (float64, error) {
			v, _ := rt.Float(h)
			return v, nil
		}, host.KindInt, host.KindBool)
	registerScalar(c, "float", host.KindFloat,
		func(v float32) (host.Handle, error) { return rt.NewFloat(float64(v)), nil },
		func(h host.Handle) (float32, error) {
			v, _ := rt.Float(h)
			if math.Abs(v) > math.MaxFloat32 && !math.IsInf(v, 0) {
				return 0, errors.Overflow(errors.PhaseFromForeign, nil, v, "float32")
			}
			return float32(v), nil
		}, host.KindInt, host.KindBool)

	registerScalar(c, "str", host.KindStr,
		func(v string) (host.Handle, error) { return rt.NewStr(v), nil },
		func(h host.Handle) (string, error) {
			v, _ := rt.Str(h)
			return v, nil
		})
	registerScalar(c, "bytes", host.KindBytes,
		func(v []byte) (host.Handle, error) { return rt.NewBytes(v), nil },
		func(h host.Handle) ([]byte, error) {
			v, _ := rt.Bytes(h)
			return v, nil
		})
}

// registerScalar installs a to-foreign function and an rvalue converter that
// accepts the given host kinds.
func registerScalar[T any](c *Converter, foreign string, kind host.Kind,
	to func(T) (host.Handle, error), from func(host.Handle) (T, error), also ...host.Kind,
) {
	k := Key[T](c)
	c.Registry.InsertToForeign(k, func(p unsafe.Pointer) (host.Handle, error) {
		return to(*(*T)(p))
	})
	kinds := append([]host.Kind{kind}, also...)
	c.Registry.InsertRvalue(k, registry.RvalueConverter{
		Name:        "builtin:" + foreign,
		ForeignType: foreign,
		Convertible: func(h host.Handle) (unsafe.Pointer, bool) {
			got := c.Runtime.Kind(h)
			for _, want := range kinds {
				if got == want {
					return nil, true
				}
			}
			return nil, false
		},
		Construct: func(h host.Handle, _, dst unsafe.Pointer) error {
			v, err := from(h)
			if err != nil {
				return err
			}
			*(*T)(dst) = v
			return nil
		},
	})
}

func registerSigned[T signed](c *Converter) {
	name := c.name(Key[T](c))
	registerScalar(c, "int", host.KindInt,
		func(v T) (host.Handle, error) { return c.Runtime.NewInt(int64(v)), nil },
		func(h host.Handle) (T, error) {
			v, _ := c.Runtime.Int(h)
			if int64(T(v)) != v {
				return 0, errors.Overflow(errors.PhaseFromForeign, nil, v, name)
			}
			return T(v), nil
		}, host.KindBool)
}

func registerUnsigned[T unsigned](c *Converter) {
	name := c.name(Key[T](c))
	registerScalar(c, "int", host.KindInt,
		func(v T) (host.Handle, error) {
			if uint64(v) > math.MaxInt64 {
				return 0, errors.Overflow(errors.PhaseToForeign, nil, uint64(v), "int")
			}
			return c.Runtime.NewInt(int64(v)), nil
		},
		func(h host.Handle) (T, error) {
			v, _ := c.Runtime.Int(h)
			if v < 0 || uint64(T(v)) != uint64(v) {
				return 0, errors.Overflow(errors.PhaseFromForeign, nil, v, name)
			}
			return T(v), nil
		}, host.KindBool)
}
