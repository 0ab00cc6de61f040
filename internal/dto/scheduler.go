package dto

// GenerationRequest instructs the generator to build a timetable for the
// given partition and group scope.
type GenerationRequest struct {
	AcademicYear     string              `json:"academicYear" validate:"required"`
	SemesterType     string              `json:"semesterType" validate:"required,oneof=ODD EVEN"`
	GroupIDs         []string            `json:"groupIds" validate:"required,min=1,dive,required"`
	Days             []string            `json:"days" validate:"omitempty,max=6,dive,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	LunchBreakPeriod int                 `json:"lunchBreakPeriod" validate:"omitempty,min=1"`
	PeriodsPerDay    int                 `json:"periodsPerDay" validate:"required,min=4,max=8"`
	MaxIterations    int                 `json:"maxIterations" validate:"omitempty,min=1"`
	Preferences      *GenerationPreferences `json:"preferences,omitempty"`
}

// GenerationPreferences are soft, non-gating hints a request can set for the
// search. None of them change feasibility; a request that omits the field
// entirely gets all four set to true by the compiler. A request that sends an
// explicit all-false object is honored as-is.
type GenerationPreferences struct {
	MinimizeGaps              bool `json:"minimizeGaps"`
	ConsecutiveLabs           bool `json:"consecutiveLabs"`
	BalancedDistribution      bool `json:"balancedDistribution"`
	RespectTeacherPreferences bool `json:"respectTeacherPreferences"`
}

// PreflightFailure describes one reason the compiler rejected a request
// before search ever began.
type PreflightFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	GroupID string `json:"groupId,omitempty"`
}

// TeacherRef, SubjectRef, GroupRef, RoomRef are the denormalized identity
// fields embedded in a SlotRecord so consumers never need a second lookup.
type TeacherRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type SubjectRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type GroupRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

type RoomRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Type string `json:"type"`
}

// SlotRecord is one placed session in the published timetable, as returned
// by read_timetable.
type SlotRecord struct {
	Day     string     `json:"day"`
	Period  int        `json:"period"`
	Teacher TeacherRef `json:"teacher"`
	Subject SubjectRef `json:"subject"`
	Group   GroupRef   `json:"group"`
	Room    RoomRef    `json:"room"`
}

// GenerationStats summarizes one search run.
type GenerationStats struct {
	Iterations              int     `json:"iterations"`
	TotalPlaced             int     `json:"totalPlaced"`
	SubjectsFullyScheduled  int     `json:"subjectsFullyScheduled"`
	CompletionPercentage    float64 `json:"completionPercentage"`
	DurationMillis          int64   `json:"durationMillis"`
}

// GenerationOutcome classifies how a generation run ended.
type GenerationOutcome string

const (
	OutcomeSAT                  GenerationOutcome = "SAT"
	OutcomeUnsat                GenerationOutcome = "UNSAT"
	OutcomeExhausted            GenerationOutcome = "EXHAUSTED"
	OutcomeCancelled            GenerationOutcome = "CANCELLED"
	OutcomeInfeasiblePreflight  GenerationOutcome = "INFEASIBLE_PREFLIGHT"
)

// GenerationWarning records a best-effort downgrade taken during search,
// e.g. a consecutive-period preference that could not be honored.
type GenerationWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenerationResponse is the result of running generate end to end.
type GenerationResponse struct {
	Outcome           GenerationOutcome   `json:"outcome"`
	PreflightFailures []PreflightFailure  `json:"preflightFailures,omitempty"`
	Slots             []SlotRecord        `json:"slots,omitempty"`
	Stats             GenerationStats     `json:"stats"`
	Warnings          []GenerationWarning `json:"warnings,omitempty"`
}

// AllocationRequest instructs the allocator to match students to electives.
type AllocationRequest struct {
	DryRun bool `json:"dryRun"`
}

// AllocationRecord is one student's allocation result.
type AllocationRecord struct {
	StudentID  string  `json:"studentId"`
	ElectiveID *string `json:"electiveId,omitempty"`
	Outcome    string  `json:"outcome"`
	Rank       *int    `json:"rank,omitempty"`
}

// AllocationResponse is the result of running allocate_electives.
type AllocationResponse struct {
	Allocations     []AllocationRecord `json:"allocations"`
	UnmatchedCount  int                `json:"unmatchedCount"`
	TotalStudents   int                `json:"totalStudents"`
}
