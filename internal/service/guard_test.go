package service

import (
	"errors"
	"testing"

	"freelancehub/internal/model"
)

func TestAuthorize(t *testing.T) {
	freelancerID := 7
	project := &model.Project{
		ID:           1,
		ClientID:     3,
		FreelancerID: &freelancerID,
		Status:       model.ProjectActive,
	}

	client := Actor{UserID: 3, Role: model.RoleClient}
	otherClient := Actor{UserID: 4, Role: model.RoleClient}
	freelancer := Actor{UserID: 7, Role: model.RoleFreelancer}
	otherFreelancer := Actor{UserID: 8, Role: model.RoleFreelancer}
	admin := Actor{UserID: 99, Role: model.RoleAdmin}

	tests := []struct {
		name    string
		actor   Actor
		action  Action
		allowed bool
	}{
		{"client publishes own project", client, ActionPublishProject, true},
		{"other client cannot publish", otherClient, ActionPublishProject, false},
		{"freelancer cannot publish", freelancer, ActionPublishProject, false},
		{"admin cannot publish", admin, ActionPublishProject, false},

		{"client cancels own project", client, ActionCancelProject, true},
		{"client hires", client, ActionHireFreelancer, true},
		{"client creates milestone", client, ActionCreateMilestone, true},
		{"freelancer cannot create milestone", freelancer, ActionCreateMilestone, false},

		{"client reviews milestone", client, ActionReviewMilestone, true},
		{"freelancer cannot review milestone", freelancer, ActionReviewMilestone, false},

		{"assigned freelancer submits", freelancer, ActionSubmitMilestone, true},
		{"other freelancer cannot submit", otherFreelancer, ActionSubmitMilestone, false},
		{"client cannot submit", client, ActionSubmitMilestone, false},

		{"assigned freelancer posts deliverable", freelancer, ActionPostDeliverable, true},
		{"assigned freelancer generates invoice", freelancer, ActionGenerateInvoice, true},
		{"client cannot generate invoice", client, ActionGenerateInvoice, false},

		{"client initiates payment", client, ActionInitiatePayment, true},
		{"freelancer cannot initiate payment", freelancer, ActionInitiatePayment, false},

		{"client opens dispute", client, ActionOpenDispute, true},
		{"assigned freelancer opens dispute", freelancer, ActionOpenDispute, true},
		{"other freelancer cannot open dispute", otherFreelancer, ActionOpenDispute, false},
		{"admin cannot open dispute", admin, ActionOpenDispute, false},

		{"admin resolves dispute", admin, ActionResolveDispute, true},
		{"client cannot resolve dispute", client, ActionResolveDispute, false},
		{"freelancer cannot resolve dispute", freelancer, ActionResolveDispute, false},

		{"client amends milestone", client, ActionAmendMilestone, true},
		{"assigned freelancer amends milestone", freelancer, ActionAmendMilestone, true},
		{"other freelancer cannot amend", otherFreelancer, ActionAmendMilestone, false},

		{"freelancer applies elsewhere", otherFreelancer, ActionApplyToProject, true},
		{"client cannot apply", client, ActionApplyToProject, false},

		{"client reviews project", client, ActionCreateReview, true},
		{"freelancer cannot review project", freelancer, ActionCreateReview, false},
		{"outsider cannot review project", otherFreelancer, ActionCreateReview, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.action, project)
			if tt.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tt.allowed {
				if err == nil {
					t.Fatal("expected forbidden, got nil")
				}
				if !errors.Is(err, ErrForbidden) {
					t.Fatalf("expected ErrForbidden, got %v", err)
				}
			}
		})
	}
}

func TestAuthorizeUnassignedProject(t *testing.T) {
	project := &model.Project{ID: 2, ClientID: 3, Status: model.ProjectPosted}

	freelancer := Actor{UserID: 7, Role: model.RoleFreelancer}
	if err := Authorize(freelancer, ActionSubmitMilestone, project); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden with no assigned freelancer, got %v", err)
	}
	if err := Authorize(freelancer, ActionApplyToProject, project); err != nil {
		t.Fatalf("freelancer should be able to apply: %v", err)
	}

	ownClient := Actor{UserID: 3, Role: model.RoleClient}
	if err := Authorize(ownClient, ActionApplyToProject, project); !errors.Is(err, ErrForbidden) {
		t.Fatalf("client applying to own project should be forbidden, got %v", err)
	}
}
