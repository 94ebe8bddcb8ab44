package wefttest

import (
	weft "github.com/tokenvault/weft"
)

// Tx is a mock implementing weft.Tx interface. It carries a single
// message and optionally fails on demand.
type Tx struct {
	// Msg is the message this transaction is carrying.
	Msg weft.Msg
	// Err if set is returned by any method call.
	Err error
}

var _ weft.Tx = (*Tx)(nil)

func (tx *Tx) GetMsg() (weft.Msg, error) {
	if tx.Err != nil {
		return nil, tx.Err
	}
	return tx.Msg, nil
}

func (tx *Tx) Marshal() ([]byte, error) {
	if tx.Err != nil {
		return nil, tx.Err
	}
	if tx.Msg == nil {
		return nil, nil
	}
	return tx.Msg.Marshal()
}

func (tx *Tx) Unmarshal([]byte) error {
	return tx.Err
}

// Msg is a mock implementing weft.Msg interface.
type Msg struct {
	// RoutePath is returned by the Path method.
	RoutePath string
	// Serialized is returned by the Marshal method.
	Serialized []byte
	// Err if set is returned by Marshal, Unmarshal and Validate.
	Err error
}

var _ weft.Msg = (*Msg)(nil)

func (m *Msg) Path() string {
	return m.RoutePath
}

func (m *Msg) Marshal() ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Serialized, nil
}

func (m *Msg) Unmarshal(raw []byte) error {
	if m.Err != nil {
		return m.Err
	}
	m.Serialized = raw
	return nil
}

func (m *Msg) Validate() error {
	return m.Err
}
