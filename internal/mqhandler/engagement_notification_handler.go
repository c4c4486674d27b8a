package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	contracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
	"freelancehub/internal/repository"
	"freelancehub/pkg/mq"
	"freelancehub/pkg/util"
)

const (
	handlerName       = "engagement_notify"
	maxHandlerRetries = 5
)

// EngagementNotificationHandler consumes the full engagement event stream
// and writes in-app notifications for the affected users. One queue bound
// to a wildcard pattern; the routing key selects the message template.
type EngagementNotificationHandler struct {
	repo         *repository.NotificationRepository
	deduper      *util.Deduper
	retryCounter *util.RetryCounter
	publisher    *mq.Publisher
	logger       *zap.Logger
}

func NewEngagementNotificationHandler(
	repo *repository.NotificationRepository,
	deduper *util.Deduper,
	retryCounter *util.RetryCounter,
	publisher *mq.Publisher,
	logger *zap.Logger,
) *EngagementNotificationHandler {
	return &EngagementNotificationHandler{
		repo:         repo,
		deduper:      deduper,
		retryCounter: retryCounter,
		publisher:    publisher,
		logger:       logger,
	}
}

type notice struct {
	userID  int
	message string
}

// Handle processes one engagement event. Retryable failures are requeued;
// poison messages go to the DLQ after maxHandlerRetries attempts.
func (h *EngagementNotificationHandler) Handle(ctx context.Context, routingKey string, raw json.RawMessage) error {
	notices, dedupKey, err := h.build(routingKey, raw)
	if err != nil {
		h.logger.Error("Failed to decode event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		// Undecodable payloads never improve on retry.
		return h.toDLQ(routingKey, raw, err)
	}
	if len(notices) == 0 {
		return nil
	}

	if !h.deduper.AcquireOnce(ctx, handlerName, dedupKey) {
		return nil
	}

	for _, n := range notices {
		notif := &model.Notification{
			UserID:  n.userID,
			Kind:    routingKey,
			Message: n.message,
		}
		if err := h.repo.Insert(ctx, notif); err != nil {
			return h.classifyAndHandle(ctx, routingKey, dedupKey, raw, err)
		}
	}

	h.logger.Info("Notifications written",
		zap.String("routing_key", routingKey),
		zap.Int("count", len(notices)),
	)
	return nil
}

// classifyAndHandle decides between requeue and DLQ for a failed insert.
func (h *EngagementNotificationHandler) classifyAndHandle(ctx context.Context, routingKey, dedupKey string, raw json.RawMessage, cause error) error {
	retryable, errType := util.IsRetryableError(cause)
	if !retryable {
		h.logger.Warn("Non-retryable handler error, routing to DLQ",
			zap.String("routing_key", routingKey),
			zap.String("error_type", errType),
			zap.Error(cause),
		)
		return h.toDLQ(routingKey, raw, cause)
	}

	retryKey := util.FormatRetryKey(handlerName, dedupKey)
	count, err := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if err != nil {
		h.logger.Warn("Retry counter unavailable, requeueing", zap.Error(err))
		return cause
	}
	if count >= maxHandlerRetries {
		h.logger.Error("Retry budget exhausted, routing to DLQ",
			zap.String("routing_key", routingKey),
			zap.Int64("attempts", count),
			zap.Error(cause),
		)
		_ = h.retryCounter.Reset(ctx, retryKey)
		return h.toDLQ(routingKey, raw, cause)
	}
	return cause
}

// toDLQ parks the message and acks it by returning nil. Failing to reach
// the DLQ keeps the message in the queue.
func (h *EngagementNotificationHandler) toDLQ(routingKey string, raw json.RawMessage, cause error) error {
	if err := h.publisher.PublishToDLQ(routingKey, raw, cause.Error()); err != nil {
		h.logger.Error("Failed to publish to DLQ",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return cause
	}
	return nil
}

// build maps an event to its recipients and a stable dedup key.
func (h *EngagementNotificationHandler) build(routingKey string, raw json.RawMessage) ([]notice, string, error) {
	switch routingKey {
	case contracts.RoutingProjectHired:
		var p contracts.ProjectEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		return []notice{
			{p.FreelancerID, fmt.Sprintf("You were hired for project %q", p.Title)},
		}, fmt.Sprintf("%s:%d", routingKey, p.ProjectID), nil

	case contracts.RoutingProjectCompleted:
		var p contracts.ProjectEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		msg := fmt.Sprintf("Project %q is complete", p.Title)
		return bothParties(p.ClientID, p.FreelancerID, msg),
			fmt.Sprintf("%s:%d", routingKey, p.ProjectID), nil

	case contracts.RoutingProjectCancelled:
		var p contracts.ProjectEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		msg := fmt.Sprintf("Project %q was cancelled", p.Title)
		return bothParties(p.ClientID, p.FreelancerID, msg),
			fmt.Sprintf("%s:%d", routingKey, p.ProjectID), nil

	case contracts.RoutingMilestoneSubmitted:
		var p contracts.MilestoneEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		return []notice{
			{p.ClientID, fmt.Sprintf("Milestone %q was submitted for review", p.Title)},
		}, fmt.Sprintf("%s:%d", routingKey, p.MilestoneID), nil

	case contracts.RoutingMilestoneApproved:
		var p contracts.MilestoneEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		return []notice{
			{p.FreelancerID, fmt.Sprintf("Milestone %q was approved", p.Title)},
		}, fmt.Sprintf("%s:%d", routingKey, p.MilestoneID), nil

	case contracts.RoutingMilestoneRejected:
		var p contracts.MilestoneEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		msg := fmt.Sprintf("Milestone %q was rejected", p.Title)
		if p.Feedback != "" {
			msg = fmt.Sprintf("Milestone %q was rejected: %s", p.Title, p.Feedback)
		}
		return []notice{{p.FreelancerID, msg}},
			fmt.Sprintf("%s:%d", routingKey, p.MilestoneID), nil

	case contracts.RoutingInvoiceGenerated:
		var p contracts.InvoiceEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		return []notice{
			{p.ClientID, fmt.Sprintf("Invoice %s for %s is ready to pay", p.InvoiceNumber, p.Amount)},
		}, fmt.Sprintf("%s:%d", routingKey, p.InvoiceID), nil

	case contracts.RoutingInvoiceOverdue:
		var p contracts.InvoiceEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		return []notice{
			{p.ClientID, fmt.Sprintf("Invoice %s for %s is overdue", p.InvoiceNumber, p.Amount)},
		}, fmt.Sprintf("%s:%d", routingKey, p.InvoiceID), nil

	case contracts.RoutingPaymentCompleted:
		var p contracts.PaymentEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		return []notice{
			{p.FreelancerID, fmt.Sprintf("Payment of %s was settled", p.Amount)},
			{p.ClientID, fmt.Sprintf("Your payment of %s completed", p.Amount)},
		}, fmt.Sprintf("%s:%d", routingKey, p.PaymentID), nil

	case contracts.RoutingPaymentFailed:
		var p contracts.PaymentEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		return []notice{
			{p.ClientID, fmt.Sprintf("Your payment of %s failed", p.Amount)},
		}, fmt.Sprintf("%s:%d:%s", routingKey, p.PaymentID, p.Status), nil

	case contracts.RoutingDisputeOpened:
		var p contracts.DisputeEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		msg := "A dispute was opened on one of your milestones"
		return bothParties(p.ClientID, p.FreelancerID, msg),
			fmt.Sprintf("%s:%d", routingKey, p.DisputeID), nil

	case contracts.RoutingDisputeResolved:
		var p contracts.DisputeEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, "", err
		}
		msg := fmt.Sprintf("A dispute was resolved: %s", p.Outcome)
		return bothParties(p.ClientID, p.FreelancerID, msg),
			fmt.Sprintf("%s:%d", routingKey, p.DisputeID), nil
	}

	// project.posted and anything new: nothing to notify.
	return nil, "", nil
}

func bothParties(clientID, freelancerID int, msg string) []notice {
	notices := []notice{{clientID, msg}}
	if freelancerID != 0 {
		notices = append(notices, notice{freelancerID, msg})
	}
	return notices
}
