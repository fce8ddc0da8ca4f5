package workflow

import (
	"fmt"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

// Workflow errors wrap the domain taxonomy so callers can classify them with
// errors.Is against the entity sentinels.
var (
	// ErrNotActiveApprover is returned when the actor is not the approver of
	// the active step
	ErrNotActiveApprover = fmt.Errorf("%w: actor is not the active approver", entity.ErrAuthorization)

	// ErrNoActiveStep is returned when an approve/reject action finds no
	// actionable step
	ErrNoActiveStep = fmt.Errorf("%w: no active approval step", entity.ErrAuthorization)

	// ErrNotOwner is returned when a submit action comes from someone other
	// than the owning employee
	ErrNotOwner = fmt.Errorf("%w: actor is not the expense owner", entity.ErrAuthorization)

	// ErrCommentsRequired is returned when a rejection carries no comments
	ErrCommentsRequired = fmt.Errorf("%w: rejection comments are required", entity.ErrValidation)

	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = fmt.Errorf("%w: status transition not permitted", entity.ErrInvalidState)
)
