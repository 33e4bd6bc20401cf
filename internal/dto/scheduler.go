package dto

import (
	"time"

	"github.com/noah-isme/timetable-api/internal/models"
)

// GenerationStatus is the terminal state of a generation run.
type GenerationStatus string

const (
	// GenerationExhausted means every subject quota reached zero.
	GenerationExhausted GenerationStatus = "EXHAUSTED"
	// GenerationPartial means the run stopped with at least one quota left.
	GenerationPartial GenerationStatus = "PARTIAL"
)

// Reasons attached to subjects left with remaining hours.
const (
	UnscheduledNoCapableTeacher = "NO_CAPABLE_TEACHER"
	UnscheduledNoFeasibleSlot   = "NO_FEASIBLE_SLOT"
	UnscheduledPassLimit        = "PASS_LIMIT"
)

// GenerateTimetableRequest asks the generator to build the weekly timetable of a class.
type GenerateTimetableRequest struct {
	ClassName string `json:"className" validate:"required,max=100"`
}

// MaxBatchClasses caps BatchGenerateRequest.ClassNames. Keep it in line with the validate tag.
const MaxBatchClasses = 50

// BatchGenerateRequest queues generation for several classes.
type BatchGenerateRequest struct {
	ClassNames []string `json:"classNames" validate:"required,min=1,max=50,dive,required,max=100"`
}

// UnscheduledSubject reports a subject whose quota could not be met.
type UnscheduledSubject struct {
	SubjectID      string  `json:"subjectId"`
	SubjectName    string  `json:"subjectName"`
	RemainingHours float64 `json:"remainingHours"`
	Reason         string  `json:"reason"`
}

// ReducedQuota reports a subject whose weekly quota was shrunk to fit the
// fallback teacher's spare capacity.
type ReducedQuota struct {
	SubjectID      string  `json:"subjectId"`
	TeacherID      string  `json:"teacherId"`
	RequestedHours float64 `json:"requestedHours"`
	GrantedHours   float64 `json:"grantedHours"`
}

// GenerateTimetableResponse carries the entries committed by one run, in commit order.
type GenerateTimetableResponse struct {
	ClassID     string                 `json:"classId"`
	ClassName   string                 `json:"className"`
	Status      GenerationStatus       `json:"status"`
	Passes      int                    `json:"passes"`
	Entries     []models.ScheduleEntry `json:"entries"`
	Unscheduled []UnscheduledSubject   `json:"unscheduled,omitempty"`
	Reduced     []ReducedQuota         `json:"reduced,omitempty"`
}

// GenerationJobState tracks one class inside a batch.
type GenerationJobState string

const (
	JobQueued  GenerationJobState = "QUEUED"
	JobRunning GenerationJobState = "RUNNING"
	JobDone    GenerationJobState = "DONE"
	JobFailed  GenerationJobState = "FAILED"
)

// GenerationJobItem is the per-class status of a batch.
type GenerationJobItem struct {
	ClassName    string             `json:"className"`
	State        GenerationJobState `json:"state"`
	Status       GenerationStatus   `json:"status,omitempty"`
	EntriesCount int                `json:"entriesCount"`
	Error        string             `json:"error,omitempty"`
}

// GenerationJobStatus summarises a batch generation request.
type GenerationJobStatus struct {
	JobID     string              `json:"jobId"`
	CreatedAt time.Time           `json:"createdAt"`
	Items     []GenerationJobItem `json:"items"`
}
