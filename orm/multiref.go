package orm

import (
	"bytes"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/tokenvault/weft/errors"
)

// MultiRef is a list of primary keys stored under a single non unique
// index entry. The references are kept sorted to make the serialized form
// deterministic.
type MultiRef struct {
	Refs [][]byte `cbor:"1,keyasint,omitempty"`
}

func (m *MultiRef) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *MultiRef) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

// Add inserts this reference in the multiref, sorted. Returns an error if
// it was already there.
func (m *MultiRef) Add(ref []byte) error {
	i, found := m.findRef(ref)
	if found {
		return errors.Wrap(errors.ErrDuplicate, "cannot add a referenced twice")
	}
	refs := append(m.Refs, nil)
	copy(refs[i+1:], refs[i:])
	refs[i] = ref
	m.Refs = refs
	return nil
}

// Remove removes this reference from the multiref. Returns an error if it
// was not present.
func (m *MultiRef) Remove(ref []byte) error {
	i, found := m.findRef(ref)
	if !found {
		return errors.Wrap(errors.ErrNotFound, "cannot remove a missing reference")
	}
	m.Refs = append(m.Refs[:i], m.Refs[i+1:]...)
	return nil
}

// Size returns the number of references held.
func (m *MultiRef) Size() int {
	return len(m.Refs)
}

// findRef returns the position where the reference is or should be
// inserted, and whether it is already present.
func (m *MultiRef) findRef(ref []byte) (int, bool) {
	i := sort.Search(len(m.Refs), func(i int) bool {
		return bytes.Compare(m.Refs[i], ref) >= 0
	})
	found := i < len(m.Refs) && bytes.Equal(m.Refs[i], ref)
	return i, found
}
