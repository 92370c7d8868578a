// Package notificationstest provides a recording Dispatcher for tests.
package notificationstest

import (
	"context"
	"sync"

	"promptmarket/internal/application/notifications"
)

// Recorder keeps every event it receives. Err, when set, is returned from each call.
type Recorder struct {
	mu        sync.Mutex
	Completed []notifications.PurchaseEvent
	Refunded  []notifications.PurchaseEvent
	Payouts   []notifications.PayoutEvent
	Err       error
}

func (r *Recorder) PurchaseCompleted(_ context.Context, ev notifications.PurchaseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = append(r.Completed, ev)
	return r.Err
}

func (r *Recorder) PurchaseRefunded(_ context.Context, ev notifications.PurchaseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Refunded = append(r.Refunded, ev)
	return r.Err
}

func (r *Recorder) PayoutProcessed(_ context.Context, ev notifications.PayoutEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Payouts = append(r.Payouts, ev)
	return r.Err
}

func (r *Recorder) CompletedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Completed)
}
