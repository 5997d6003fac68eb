package worker

import (
	"context"

	audit "sheetport/pkg/platform/audit"
)

// Worker drains the publisher's inbox into a Store.
type Worker struct {
	store audit.Store
	inbox <-chan audit.Event
}

func NewWorker(store audit.Store, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

// Run persists events until ctx is done or the inbox is closed. A closed
// inbox means the producer is draining, so Run returns nil.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
