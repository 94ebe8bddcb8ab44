package cron

import (
	"github.com/fxamacker/cbor/v2"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
)

// Task is a single queued message together with the execution context it
// was scheduled with.
type Task struct {
	Path       string           `cbor:"1,keyasint"`
	Raw        []byte           `cbor:"2,keyasint"`
	Caller     weft.Address     `cbor:"3,keyasint,omitempty"`
	Conditions []weft.Condition `cbor:"4,keyasint,omitempty"`
}

var _ orm.Model = (*Task)(nil)

func (t *Task) Marshal() ([]byte, error) {
	return cbor.Marshal(t)
}

func (t *Task) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, t)
}

func (t *Task) Validate() error {
	if t.Path == "" {
		return errors.Wrap(errors.ErrEmpty, "path")
	}
	if len(t.Raw) == 0 {
		return errors.Wrap(errors.ErrEmpty, "message")
	}
	return nil
}

// TaskResult is the outcome of a single executed task. It is kept in the
// database under the task ID so that clients can poll for the result of
// an asynchronous continuation.
type TaskResult struct {
	Successful bool   `cbor:"1,keyasint"`
	Info       string `cbor:"2,keyasint,omitempty"`
	ExecTime   int64  `cbor:"3,keyasint"`
	ExecHeight int64  `cbor:"4,keyasint,omitempty"`
}

var _ orm.Model = (*TaskResult)(nil)

func (t *TaskResult) Marshal() ([]byte, error) {
	return cbor.Marshal(t)
}

func (t *TaskResult) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, t)
}

func (t *TaskResult) Validate() error {
	return nil
}

// NewTaskResultBucket returns a bucket for storing task results.
func NewTaskResultBucket() orm.ModelBucket {
	return orm.NewModelBucket("trs", &TaskResult{})
}
