package service

import (
	"freelancehub/internal/model"
)

// Actor is the resolved identity performing an operation.
type Actor struct {
	UserID int
	Role   string
}

// Action names every guarded transition in the engagement lifecycle.
type Action string

const (
	ActionPublishProject   Action = "project.publish"
	ActionCancelProject    Action = "project.cancel"
	ActionHireFreelancer   Action = "project.hire"
	ActionCreateMilestone  Action = "milestone.create"
	ActionAmendMilestone   Action = "milestone.amend"
	ActionSubmitMilestone  Action = "milestone.submit"
	ActionReviewMilestone  Action = "milestone.review"
	ActionPostDeliverable  Action = "deliverable.post"
	ActionGenerateInvoice  Action = "invoice.generate"
	ActionInitiatePayment  Action = "payment.initiate"
	ActionOpenDispute      Action = "dispute.open"
	ActionResolveDispute   Action = "dispute.resolve"
	ActionApplyToProject   Action = "application.apply"
	ActionCreateReview     Action = "review.create"
)

// Authorize decides whether the actor may perform the action on the given
// project. It is a pure function of role plus relationship to the project
// and never touches state; callers run it before any write.
func Authorize(actor Actor, action Action, p *model.Project) error {
	isClient := actor.Role == model.RoleClient && p.ClientID == actor.UserID
	isFreelancer := actor.Role == model.RoleFreelancer &&
		p.FreelancerID != nil && *p.FreelancerID == actor.UserID

	switch action {
	case ActionPublishProject, ActionCancelProject, ActionHireFreelancer,
		ActionCreateMilestone, ActionReviewMilestone, ActionInitiatePayment:
		if !isClient {
			return forbiddenf("action %s requires the project client", action)
		}
		return nil

	case ActionAmendMilestone:
		// Amount changes at resubmission time come from either side of the
		// engagement; the budget check still applies.
		if !isClient && !isFreelancer {
			return forbiddenf("action %s requires the project client or assigned freelancer", action)
		}
		return nil

	case ActionSubmitMilestone, ActionPostDeliverable, ActionGenerateInvoice:
		if !isFreelancer {
			return forbiddenf("action %s requires the assigned freelancer", action)
		}
		return nil

	case ActionOpenDispute:
		if !isClient && !isFreelancer {
			return forbiddenf("only the project client or assigned freelancer may open a dispute")
		}
		return nil

	case ActionCreateReview:
		if !isClient {
			return forbiddenf("only the project client may leave a review")
		}
		return nil

	case ActionResolveDispute:
		if actor.Role != model.RoleAdmin {
			return forbiddenf("dispute resolution requires admin")
		}
		return nil

	case ActionApplyToProject:
		if actor.Role != model.RoleFreelancer {
			return forbiddenf("only freelancers may apply to projects")
		}
		if p.ClientID == actor.UserID {
			return forbiddenf("cannot apply to own project")
		}
		return nil
	}

	return forbiddenf("unknown action %s", action)
}
