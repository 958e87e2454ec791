package bridge

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/wippyai/objbridge/errors"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bridge: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot describes the registry, the exposed classes and the cast graph.
type Snapshot struct {
	Registrations []RegistrationInfo `cbor:"1,keyasint"`
	Classes       []ClassInfo        `cbor:"2,keyasint,omitempty"`
	Edges         []EdgeInfo         `cbor:"3,keyasint,omitempty"`
	CacheEntries  int                `cbor:"4,keyasint"`
}

// RegistrationInfo describes one registration.
type RegistrationInfo struct {
	Type        string   `cbor:"1,keyasint"`
	ForeignType string   `cbor:"2,keyasint,omitempty"`
	Lvalues     []string `cbor:"3,keyasint,omitempty"`
	Rvalues     []string `cbor:"4,keyasint,omitempty"`
	Key         uint32   `cbor:"5,keyasint"`
	ToForeign   bool     `cbor:"6,keyasint"`
	HasClass    bool     `cbor:"7,keyasint"`
	Shared      bool     `cbor:"8,keyasint"`
}

// ClassInfo describes one exposed class.
type ClassInfo struct {
	Name          string   `cbor:"1,keyasint"`
	Type          string   `cbor:"2,keyasint"`
	Bases         []string `cbor:"3,keyasint,omitempty"`
	Methods       []string `cbor:"4,keyasint,omitempty"`
	Polymorphic   bool     `cbor:"5,keyasint"`
	BackReference bool     `cbor:"6,keyasint"`
}

// EdgeInfo describes one cast graph edge.
type EdgeInfo struct {
	Src      string `cbor:"1,keyasint"`
	Dst      string `cbor:"2,keyasint"`
	Downcast bool   `cbor:"3,keyasint"`
}

// Snapshot collects the current state without creating registrations.
func (b *Bridge) Snapshot() Snapshot {
	var s Snapshot
	for _, k := range b.reg.Keys() {
		reg := b.reg.Query(k)
		info := RegistrationInfo{
			Type:        reg.Name,
			ForeignType: reg.ForeignType,
			Key:         uint32(k),
			ToForeign:   reg.ToForeign != nil,
			HasClass:    reg.Class != 0,
			Shared:      reg.IsShared,
		}
		for _, lv := range reg.Lvalues {
			info.Lvalues = append(info.Lvalues, lv.Name)
		}
		for _, rv := range reg.Rvalues {
			info.Rvalues = append(info.Rvalues, rv.Name)
		}
		s.Registrations = append(s.Registrations, info)
	}
	for _, c := range b.Classes() {
		info := ClassInfo{
			Name:          c.name,
			Type:          c.typ.String(),
			Methods:       c.methods,
			Polymorphic:   c.Polymorphic(),
			BackReference: c.backref,
		}
		for _, k := range c.bases {
			info.Bases = append(info.Bases, b.types.Name(k))
		}
		s.Classes = append(s.Classes, info)
	}
	for _, e := range b.graph.Edges() {
		s.Edges = append(s.Edges, EdgeInfo{
			Src:      b.types.Name(e.Src),
			Dst:      b.types.Name(e.Dst),
			Downcast: e.Downcast,
		})
	}
	s.CacheEntries = b.graph.CacheLen()
	return s
}

// EncodeSnapshot returns the snapshot in canonical CBOR.
func (b *Bridge) EncodeSnapshot() ([]byte, error) {
	data, err := cborEncMode.Marshal(b.Snapshot())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "encode snapshot")
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "decode snapshot")
	}
	return s, nil
}
