package mqhandler

import (
	"encoding/json"
	"testing"

	contracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
)

func TestBuildNotices(t *testing.T) {
	h := &EngagementNotificationHandler{}

	milestone, _ := json.Marshal(contracts.MilestoneEventPayload{
		MilestoneID:  5,
		ProjectID:    1,
		ClientID:     10,
		FreelancerID: 20,
		Title:        "phase one",
		Amount:       model.MustMoney("400.00"),
		Status:       model.MilestoneSubmitted,
	})
	notices, key, err := h.build(contracts.RoutingMilestoneSubmitted, milestone)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(notices) != 1 || notices[0].userID != 10 {
		t.Fatalf("submitted milestone should notify the client, got %+v", notices)
	}
	if key != "milestone.submitted:5" {
		t.Fatalf("dedup key = %q", key)
	}

	payment, _ := json.Marshal(contracts.PaymentEventPayload{
		PaymentID:    7,
		ClientID:     10,
		FreelancerID: 20,
		Amount:       model.MustMoney("400.00"),
		Status:       model.PaymentCompleted,
	})
	notices, _, err = h.build(contracts.RoutingPaymentCompleted, payment)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(notices) != 2 {
		t.Fatalf("completed payment should notify both parties, got %+v", notices)
	}

	dispute, _ := json.Marshal(contracts.DisputeEventPayload{
		DisputeID: 3,
		ClientID:  10,
		// No freelancer on the payload; only the client is notified.
	})
	notices, _, err = h.build(contracts.RoutingDisputeOpened, dispute)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(notices) != 1 || notices[0].userID != 10 {
		t.Fatalf("expected one client notice, got %+v", notices)
	}
}

func TestBuildIgnoresUnknownRoutingKeys(t *testing.T) {
	h := &EngagementNotificationHandler{}

	notices, _, err := h.build("project.posted", json.RawMessage(`{"project_id":1}`))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if notices != nil {
		t.Fatalf("posted projects should not notify, got %+v", notices)
	}
}

func TestBuildRejectsMalformedPayload(t *testing.T) {
	h := &EngagementNotificationHandler{}

	if _, _, err := h.build(contracts.RoutingMilestoneApproved, json.RawMessage(`{not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
