package services

import (
	"github.com/psicanalise-online/platform/utils"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

type ResourceKind string

const (
	ResourceOrder       ResourceKind = "order"
	ResourceAppointment ResourceKind = "appointment"
	ResourceNotes       ResourceKind = "notes"
	ResourceProduct     ResourceKind = "product"
	ResourceAdmin       ResourceKind = "admin"
	ResourceBlog        ResourceKind = "blog"
)

// Resource describes what is being accessed. OwnerID is the client side of
// the record and ProfessionalID the professional side.
type Resource struct {
	Kind           ResourceKind
	OwnerID        uint
	ProfessionalID uint
}

// Authorize is the single access decision for every workflow.
func Authorize(caller Caller, res Resource, action Action) error {
	if caller.UserID == 0 {
		return utils.ErrUnauthorized
	}

	isOwner := res.OwnerID != 0 && caller.UserID == res.OwnerID
	isProfessional := caller.IsProfessional() && res.ProfessionalID != 0 && caller.UserID == res.ProfessionalID

	switch res.Kind {
	case ResourceOrder, ResourceAppointment:
		if isOwner || isProfessional {
			return nil
		}
	case ResourceNotes, ResourceProduct:
		if isProfessional {
			return nil
		}
		if res.Kind == ResourceProduct && action == ActionRead {
			return nil
		}
	case ResourceAdmin, ResourceBlog:
		if caller.IsProfessional() {
			return nil
		}
	}
	return utils.NewForbidden("you do not have access to this resource")
}
