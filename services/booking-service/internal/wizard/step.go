package wizard

import "fmt"

// Step is a stage of the booking flow. Steps are ordered; the zero value is invalid.
type Step int

const (
	StepSpecialty Step = iota + 1
	StepTherapist
	StepSchedule
	StepPayment
	StepConfirmation
)

// AllSteps lists the steps in wizard order.
func AllSteps() []Step {
	return []Step{StepSpecialty, StepTherapist, StepSchedule, StepPayment, StepConfirmation}
}

func (s Step) Valid() bool {
	return s >= StepSpecialty && s <= StepConfirmation
}

func (s Step) String() string {
	switch s {
	case StepSpecialty:
		return "specialty"
	case StepTherapist:
		return "therapist"
	case StepSchedule:
		return "schedule"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusActive    StepStatus = "active"
	StatusPending   StepStatus = "pending"
)

type StepState struct {
	Step   Step
	Status StepStatus
}
