package ui

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"taskapp/internal/storage"
)

var (
	ErrNoPendingDelete = errors.New("no delete awaiting confirmation")
	ErrDeletePending   = errors.New("a delete is already awaiting confirmation")
)

type TaskDeleter interface {
	DeleteByID(id int) (int64, error)
}

type AlarmCanceller interface {
	Cancel(id int) error
}

type deleteState int

const (
	deleteIdle deleteState = iota
	deleteConfirmPending
)

// DeleteFlow walks Idle -> ConfirmPending -> (Committed | Aborted) -> Idle.
type DeleteFlow struct {
	store  TaskDeleter
	alarms AlarmCanceller
	logger *zap.Logger

	state   deleteState
	pending storage.Task
}

func NewDeleteFlow(store TaskDeleter, alarms AlarmCanceller, logger *zap.Logger) *DeleteFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeleteFlow{store: store, alarms: alarms, logger: logger}
}

func (f *DeleteFlow) Pending() (storage.Task, bool) {
	return f.pending, f.state == deleteConfirmPending
}

// Begin captures t by value and asks for confirmation.
func (f *DeleteFlow) Begin(t storage.Task) (string, error) {
	if f.state != deleteIdle {
		return "", ErrDeletePending
	}
	f.state = deleteConfirmPending
	f.pending = t
	return fmt.Sprintf("Delete %q? y/n", t.Title), nil
}

// Confirm deletes the pending task, then cancels its alarm. The cancel is
// attempted even when the delete failed or found nothing.
func (f *DeleteFlow) Confirm() error {
	if f.state != deleteConfirmPending {
		return ErrNoPendingDelete
	}
	t := f.pending
	f.reset()

	var result error
	n, err := f.store.DeleteByID(t.ID)
	if err != nil {
		f.logger.Error("delete task failed", zap.Int("task_id", t.ID), zap.Error(err))
		result = errors.Join(result, err)
	} else {
		f.logger.Info("task deleted", zap.Int("task_id", t.ID), zap.Int64("rows", n))
	}
	if f.alarms != nil {
		if err := f.alarms.Cancel(t.ID); err != nil {
			f.logger.Error("cancel alarm failed", zap.Int("task_id", t.ID), zap.Error(err))
			result = errors.Join(result, err)
		}
	}
	return result
}

// Abort drops the pending delete without touching the store or alarms.
func (f *DeleteFlow) Abort() error {
	if f.state != deleteConfirmPending {
		return ErrNoPendingDelete
	}
	f.reset()
	return nil
}

func (f *DeleteFlow) reset() {
	f.state = deleteIdle
	f.pending = storage.Task{}
}
