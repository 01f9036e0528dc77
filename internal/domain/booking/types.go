package booking

import "time"

// Outcome is the classified result of a single attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInfrastructureFailure
	OutcomeGenericFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInfrastructureFailure:
		return "infrastructure_failure"
	case OutcomeGenericFailure:
		return "generic_failure"
	default:
		return "unknown"
	}
}

// Action is what the agent does with the chosen class.
type Action string

const (
	ActionBook   Action = "book"
	ActionCancel Action = "cancel"
)

// ClassSlot is one wanted class on a weekday. Time is local HH:MM.
type ClassSlot struct {
	Name string `yaml:"name"`
	Time string `yaml:"time"`
}

// Label is how a slot is reported in logs and mails, e.g. "Yoga-18:00".
func (c ClassSlot) Label() string {
	return c.Name + "-" + NormalizeTime(c.Time)
}

// ClassSelection parameterizes the reserve step. Classes is keyed by
// lower-case English weekday name; entries are in preference order.
type ClassSelection struct {
	Action  Action                 `yaml:"book_class"`
	Classes map[string][]ClassSlot `yaml:"class_dict"`
}

// For returns the wanted classes for the weekday of day.
func (s ClassSelection) For(day time.Weekday) []ClassSlot {
	return s.Classes[weekdayKey(day)]
}

// Clone returns a copy that shares no maps or slices with s.
func (s ClassSelection) Clone() ClassSelection {
	c := ClassSelection{Action: s.Action}
	if s.Classes == nil {
		return c
	}
	c.Classes = make(map[string][]ClassSlot, len(s.Classes))
	for day, slots := range s.Classes {
		c.Classes[day] = append([]ClassSlot(nil), slots...)
	}
	return c
}

// Reservation is what the agent reports after the reserve step.
type Reservation struct {
	Done      bool
	ClassSlot string
	TimeSlot  string
}

// AttemptRecord describes one resolved attempt. It is not modified after
// the orchestrator finishes the attempt.
type AttemptRecord struct {
	Attempt    int
	Outcome    Outcome
	Err        error
	ClassSlot  string
	TimeSlot   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Detail is the error text, empty on success.
func (r AttemptRecord) Detail() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// RunOutcome is derived once, after the retry loop.
type RunOutcome struct {
	Booked       bool
	LastAttempt  AttemptRecord
	AttemptsMade int
}

// DeriveOutcome builds the run outcome from the attempt records in order.
func DeriveOutcome(records []AttemptRecord) RunOutcome {
	if len(records) == 0 {
		return RunOutcome{}
	}
	last := records[len(records)-1]
	return RunOutcome{
		Booked:       last.Outcome == OutcomeSuccess,
		LastAttempt:  last,
		AttemptsMade: len(records),
	}
}

// Tag marks the logs mail with the run result.
type Tag string

const (
	TagSuccess Tag = "SUCCESS"
	TagFailed  Tag = "FAILED"
)

// NotificationPlan is the set of mails a finished run sends.
type NotificationPlan struct {
	Tag       Tag
	Booked    bool
	ClassSlot string
	TimeSlot  string
}

func PlanNotifications(o RunOutcome) NotificationPlan {
	if !o.Booked {
		return NotificationPlan{Tag: TagFailed}
	}
	return NotificationPlan{
		Tag:       TagSuccess,
		Booked:    true,
		ClassSlot: o.LastAttempt.ClassSlot,
		TimeSlot:  o.LastAttempt.TimeSlot,
	}
}

// AttemptParams binds one attempt's agent to the run parameters.
type AttemptParams struct {
	DaysBeforeBookable   int
	BaseURL              string
	ExecutionBookingTime string
}
