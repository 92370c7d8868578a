package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"promptmarket/internal/application/emails"
	"promptmarket/internal/infrastructure/queue"
	"promptmarket/internal/metrics"
	"promptmarket/internal/pkg/money"

	"github.com/hibiken/asynq"
)

const (
	TaskPurchaseCompleted = "purchase:completed"
	TaskPurchaseRefunded  = "purchase:refunded"
	TaskPayoutProcessed   = "payout:processed"
)

// Enqueuer is the part of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Party is a notification recipient.
type Party struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// PurchasePayload is the task body for purchase notifications.
type PurchasePayload struct {
	PurchaseID     string      `json:"purchase_id"`
	OrderNumber    string      `json:"order_number"`
	ListingTitle   string      `json:"listing_title"`
	Amount         money.Cents `json:"amount"`
	SellerEarnings money.Cents `json:"seller_earnings"`
	Currency       string      `json:"currency"`
	Buyer          Party       `json:"buyer"`
	Seller         Party       `json:"seller"`
}

type PayoutPayload struct {
	PayoutID string      `json:"payout_id"`
	Amount   money.Cents `json:"amount"`
	Currency string      `json:"currency"`
	Seller   Party       `json:"seller"`
}

// Queue turns events into asynq email tasks handled by the worker process.
type Queue struct {
	Client   Enqueuer
	Currency string
	// MaxRetry bounds asynq redelivery of a failed email task.
	MaxRetry int
}

func (q *Queue) PurchaseCompleted(ctx context.Context, ev PurchaseEvent) error {
	return q.enqueue(ctx, TaskPurchaseCompleted, q.purchasePayload(ev))
}

func (q *Queue) PurchaseRefunded(ctx context.Context, ev PurchaseEvent) error {
	return q.enqueue(ctx, TaskPurchaseRefunded, q.purchasePayload(ev))
}

func (q *Queue) PayoutProcessed(ctx context.Context, ev PayoutEvent) error {
	p := PayoutPayload{
		PayoutID: ev.Payout.ID.String(),
		Amount:   ev.Payout.Amount,
		Currency: ev.Payout.Currency,
	}
	if ev.Seller != nil {
		p.Seller = Party{Email: ev.Seller.Email, Name: ev.Seller.Name}
	}
	return q.enqueue(ctx, TaskPayoutProcessed, p)
}

func (q *Queue) purchasePayload(ev PurchaseEvent) PurchasePayload {
	p := PurchasePayload{
		PurchaseID:     ev.Purchase.ID.String(),
		OrderNumber:    ev.Purchase.OrderNumber,
		Amount:         ev.Purchase.Price,
		SellerEarnings: ev.Purchase.SellerEarnings,
		Currency:       q.Currency,
	}
	if ev.Listing != nil {
		p.ListingTitle = ev.Listing.Title
	}
	if ev.Buyer != nil {
		p.Buyer = Party{Email: ev.Buyer.Email, Name: ev.Buyer.Name}
	}
	if ev.Seller != nil {
		p.Seller = Party{Email: ev.Seller.Email, Name: ev.Seller.Name}
	}
	return p
}

func (q *Queue) enqueue(ctx context.Context, taskType string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	maxRetry := q.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	_, err = q.Client.EnqueueContext(ctx, asynq.NewTask(taskType, b), asynq.Queue(queue.QueueEmails), asynq.MaxRetry(maxRetry))
	if err != nil {
		metrics.Notifications.WithLabelValues("queue", "error").Inc()
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	metrics.Notifications.WithLabelValues("queue", "ok").Inc()
	return nil
}

// TaskHandler sends the emails behind queued notification tasks.
type TaskHandler struct {
	Emails emails.Sender
}

// Register attaches every notification task to mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskPurchaseCompleted, h.HandlePurchaseCompleted)
	mux.HandleFunc(TaskPurchaseRefunded, h.HandlePurchaseRefunded)
	mux.HandleFunc(TaskPayoutProcessed, h.HandlePayoutProcessed)
}

func (h *TaskHandler) HandlePurchaseCompleted(ctx context.Context, t *asynq.Task) error {
	var p PurchasePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if h.Emails == nil {
		return nil
	}
	r := p.receipt()
	if p.Buyer.Email != "" {
		if err := h.Emails.SendPurchaseReceipt(ctx, p.Buyer.Email, p.Buyer.Name, r); err != nil {
			return err
		}
	}
	if p.Seller.Email != "" {
		if err := h.Emails.SendSaleNotification(ctx, p.Seller.Email, p.Seller.Name, r); err != nil {
			return err
		}
	}
	return nil
}

func (h *TaskHandler) HandlePurchaseRefunded(ctx context.Context, t *asynq.Task) error {
	var p PurchasePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if h.Emails == nil || p.Buyer.Email == "" {
		return nil
	}
	return h.Emails.SendRefundNotice(ctx, p.Buyer.Email, p.Buyer.Name, p.receipt())
}

func (h *TaskHandler) HandlePayoutProcessed(ctx context.Context, t *asynq.Task) error {
	var p PayoutPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if h.Emails == nil || p.Seller.Email == "" {
		return nil
	}
	return h.Emails.SendPayoutProcessed(ctx, p.Seller.Email, p.Seller.Name, p.Amount, p.Currency)
}

func (p PurchasePayload) receipt() emails.Receipt {
	return emails.Receipt{
		OrderNumber:    p.OrderNumber,
		ListingTitle:   p.ListingTitle,
		Amount:         p.Amount,
		SellerEarnings: p.SellerEarnings,
		Currency:       p.Currency,
	}
}
