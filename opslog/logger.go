// Package opslog adapts rs/zerolog to the operations.Logger interface.
package opslog

import (
	"github.com/joeycumines/go-operations"
	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger as operations.Logger.
type Logger struct {
	zl zerolog.Logger
}

var _ operations.Logger = Logger{}

// New adapts zl.
func New(zl zerolog.Logger) Logger { return Logger{zl: zl} }

func (l Logger) Debug(msg string, fields map[string]any) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l Logger) Info(msg string, fields map[string]any) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l Logger) Error(msg string, err error, fields map[string]any) {
	l.zl.Error().Err(err).Fields(fields).Msg(msg)
}

// ObserverLogger builds an operations.Observer that logs the WillExecute,
// WillCancel, DidProduce and WillFinish events of the operation it is
// attached to (DidAttach, DidCancel and DidFinish are not logged), at a
// level appropriate to the event (debug for routine transitions, error for
// WillCancel/WillFinish when errors are present).
func ObserverLogger(log operations.Logger) operations.Observer {
	return operations.Observer{
		WillExecute: func(op operations.Operation) {
			log.Debug("operation executing", map[string]any{"operation": op.Name(), "id": op.ID().String()})
		},
		WillCancel: func(op operations.Operation, errs []error) {
			fields := map[string]any{"operation": op.Name(), "id": op.ID().String()}
			if len(errs) > 0 {
				log.Error("operation cancelling", errs[0], fields)
			} else {
				log.Debug("operation cancelling", fields)
			}
		},
		DidProduce: func(op operations.Operation, child operations.Operation) {
			log.Debug("operation produced child", map[string]any{
				"operation": op.Name(),
				"id":        op.ID().String(),
				"child":     child.Name(),
				"childID":   child.ID().String(),
			})
		},
		WillFinish: func(op operations.Operation, errs []error) {
			fields := map[string]any{"operation": op.Name(), "id": op.ID().String(), "cancelled": op.Cancelled()}
			if len(errs) > 0 {
				log.Error("operation finishing with errors", &operations.AggregateError{Errors: errs}, fields)
			} else {
				log.Debug("operation finishing", fields)
			}
		},
	}
}
