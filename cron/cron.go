package cron

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/orm"
)

// Decoders maps message paths to constructors, so that a task read back
// from the queue can be deserialized into the right message type. Every
// message path that can be scheduled must be registered.
type Decoders struct {
	reg map[string]func() weft.Msg
}

func NewDecoders() *Decoders {
	return &Decoders{reg: make(map[string]func() weft.Msg)}
}

// Register binds a message constructor to a path. It panics when the path
// was already registered, as this is a program setup issue.
func (d *Decoders) Register(path string, fn func() weft.Msg) {
	if _, ok := d.reg[path]; ok {
		panic(fmt.Sprintf("decoder for %q registered twice", path))
	}
	d.reg[path] = fn
}

// RegisterMsg binds a message constructor under the path of the message
// it produces.
func (d *Decoders) RegisterMsg(fn func() weft.Msg) {
	d.Register(fn().Path(), fn)
}

func (d *Decoders) decode(t Task) (weft.Msg, error) {
	fn, ok := d.reg[t.Path]
	if !ok {
		return nil, errors.Wrapf(errors.ErrMsg, "no decoder for %q", t.Path)
	}
	msg := fn()
	if err := msg.Unmarshal(t.Raw); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %q message", t.Path)
	}
	return msg, nil
}

// NewScheduler returns a scheduler implementation persisting tasks in the
// database queue. Returned scheduler implements weft.Scheduler interface.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Scheduler is the weft.Scheduler implementation.
type Scheduler struct{}

var _ weft.Scheduler = (*Scheduler)(nil)

// Schedule implements weft.Scheduler interface.
//
// Due to the implementation details, the message is guaranteed to be
// executed after given time, but not exactly at given time. If another
// task is already scheduled for the exact same time, execution of this
// task is delayed until the next free slot.
//
// Time granularity is second.
func (s *Scheduler) Schedule(db weft.KVStore, runAt time.Time, caller weft.Address, conds []weft.Condition, msg weft.Msg) ([]byte, error) {
	const granularity = time.Second
	runAt = runAt.Round(granularity)

	rawMsg, err := msg.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal message")
	}
	task := Task{
		Path:       msg.Path(),
		Raw:        rawMsg,
		Caller:     caller,
		Conditions: conds,
	}
	raw, err := task.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal task")
	}

	for {
		key := queueKey(runAt)
		if ok, err := db.Has(key); err != nil {
			return nil, errors.Wrap(err, "cannot check key existence")
		} else if ok {
			// If the key is already in use, instead of storing a
			// list of tasks under each key, which is very unlikely
			// to happen, increase the execution time by the
			// smallest duration.
			runAt = runAt.Add(granularity)
			continue
		}

		if err := db.Set(key, raw); err != nil {
			return nil, errors.Wrap(err, "cannot store in queue")
		}
		return key, nil
	}
}

// Delete implements weft.Scheduler interface.
func (s *Scheduler) Delete(db weft.KVStore, taskID []byte) error {
	if ok, err := db.Has(taskID); err != nil {
		return errors.Wrap(err, "has")
	} else if !ok {
		return errors.Wrap(errors.ErrNotFound, "no task")
	}
	if err := db.Delete(taskID); err != nil {
		return errors.Wrap(err, "cannot delete")
	}
	return nil
}

func queueKey(t time.Time) []byte {
	rawTime := make([]byte, 8)
	// Zero time does not need to put any data as the bytes are already
	// set to zero.
	if !t.IsZero() {
		binary.BigEndian.PutUint64(rawTime, uint64(t.UnixNano()))
	}
	return append([]byte("_crontask:runat:"), rawTime...)
}

// NewTicker returns a cron runner instance that is using given handler to
// process all queued tasks that execution time is due.
//
// Always register in the decoders every message path the application can
// schedule.
func NewTicker(h weft.Handler, dec *Decoders, log zerolog.Logger) *Ticker {
	return &Ticker{
		hn:      h,
		dec:     dec,
		results: NewTaskResultBucket(),
		log:     log,
	}
}

// Ticker executes messages queued for future execution. It does this by
// implementing weft.Ticker interface.
type Ticker struct {
	hn      weft.Handler
	dec     *Decoders
	results orm.ModelBucket
	log     zerolog.Logger
}

var _ weft.Ticker = (*Ticker)(nil)

// Tick implements weft.Ticker interface.
//
// Tick can process any number of tasks suitable for execution. Each task
// is processed atomically and independently of the others.
func (t *Ticker) Tick(ctx weft.Context, db weft.CacheableKVStore) weft.TickResult {
	result, err := t.tick(ctx, db)
	if err != nil {
		// This is a hopeless state, most likely a database issue. The
		// queue must not be processed partially as that would leave
		// this instance out of sync with the rest of the network.
		failTask(err)
	}
	return result
}

// failTask is a variable so that it can be overwritten for tests.
var failTask = func(err error) {
	panic(fmt.Sprintf("asynchronous task failed: %+v", err))
}

func (t *Ticker) tick(ctx weft.Context, db weft.CacheableKVStore) (weft.TickResult, error) {
	var result weft.TickResult

	now, err := weft.BlockTime(ctx)
	if err != nil {
		return result, errors.Wrap(err, "cannot get current time")
	}
	height, _ := weft.GetHeight(ctx)

	for {
		switch key, task, err := peek(db, now); {
		case err == nil:
			res := TaskResult{
				Successful: true,
				ExecTime:   now.Unix(),
				ExecHeight: height,
			}

			// Each task is processed using its own cache instance
			// to ensure changes are atomic and task processing
			// independent.
			cache := db.CacheWrap()

			var events []weft.Event
			msg, err := t.dec.decode(*task)
			if err != nil {
				res.Successful = false
				res.Info = fmt.Sprintf("cannot decode task: %+v", err)
			} else {
				taskCtx := withAuth(ctx, task.Conditions)
				taskCtx = weft.WithCaller(taskCtx, task.Caller)
				// The deliver runs on a nested wrap so that a failed
				// execution does not stain the cache that the result
				// and the dequeue are written through.
				exec := cache.CacheWrap()
				if r, err := t.hn.Deliver(taskCtx, exec, &taskTx{msg: msg}); err != nil {
					exec.Discard()
					res.Successful = false
					res.Info = err.Error()
				} else if err := exec.Write(); err != nil {
					return result, errors.Wrap(err, "cannot write task cache")
				} else {
					events = r.Events
					if r.Log != "" {
						res.Info = r.Log
					}
				}
			}

			if !res.Successful {
				t.log.Info().
					Str("path", task.Path).
					Str("info", res.Info).
					Msg("scheduled task failed")
			} else {
				t.log.Debug().
					Str("path", task.Path).
					Msg("scheduled task executed")
			}

			if _, err := t.results.Put(cache, key, &res); err != nil {
				// Keep it atomic.
				cache.Discard()
				return result, errors.Wrap(err, "cannot store result")
			}

			// Remove the task from the queue as it was processed.
			// Do it via cache to keep it atomic.
			if err := cache.Delete(key); err != nil {
				cache.Discard()
				return result, errors.Wrap(err, "cannot dequeue")
			}
			if err := cache.Write(); err != nil {
				return result, errors.Wrap(err, "cannot write cache")
			}

			// Only when the database state is updated we can
			// consider this task executed.
			result.Events = append(result.Events, events...)
			result.Executed = append(result.Executed, key)
		case errors.ErrEmpty.Is(err):
			// No more tasks queued for execution at this time.
			return result, nil
		default:
			return result, errors.Wrap(err, "cannot pop queue")
		}
	}
}

// peek reads from the queue a single task that reached its execution time
// and returns it together with its ID. It returns ErrEmpty if there is no
// task suitable for processing.
// Tasks are consumed in order of execution time, starting with the oldest.
func peek(db weft.KVStore, now time.Time) ([]byte, *Task, error) {
	since := queueKey(time.Time{}) // Zero time is early enough.
	until := queueKey(now.Add(time.Second))
	it, err := db.Iterator(since, until)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot create iterator")
	}
	defer it.Release()

	switch key, value, err := it.Next(); {
	case err == nil:
		var task Task
		if err := task.Unmarshal(value); err != nil {
			return nil, nil, errors.Wrapf(err, "unmarshal task %x", key)
		}
		return key, &task, nil
	case errors.ErrIteratorDone.Is(err):
		return nil, nil, errors.ErrEmpty
	default:
		return nil, nil, errors.Wrap(err, "cannot get next item")
	}
}

// taskTx is a weft.Tx implementation created for running asynchronous
// tasks. It is a thin wrapper over the message.
type taskTx struct {
	msg weft.Msg
}

var _ weft.Tx = (*taskTx)(nil)

// GetMsg implements weft.Tx interface.
func (tx *taskTx) GetMsg() (weft.Msg, error) {
	return tx.msg, nil
}
