package admission

// Stage is one step of the admission form, in display order.
type Stage int

const (
	StageLearner Stage = iota
	StageGuardians
	StageFamily
	StageEmployment
	StageCurrentSchool
	StagePayment
	StageDocuments
	StageReview
)

// LastDataStage is the final data-entry stage; advancing from it submits the application.
const LastDataStage = StagePayment

var stageNames = map[Stage]string{
	StageLearner:       "Learner",
	StageGuardians:     "Guardians",
	StageFamily:        "Address, Religion & Family",
	StageEmployment:    "Employment",
	StageCurrentSchool: "Current School",
	StagePayment:       "Payment & Documents",
	StageDocuments:     "Supporting Documents",
	StageReview:        "Review",
}

// String returns the heading shown for the stage.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsDataStage reports whether the stage collects draft fields.
func (s Stage) IsDataStage() bool {
	return s >= StageLearner && s <= LastDataStage
}

// DataStages lists the data-entry stages in order.
func DataStages() []Stage {
	stages := make([]Stage, 0, int(LastDataStage)+1)
	for s := StageLearner; s <= LastDataStage; s++ {
		stages = append(stages, s)
	}
	return stages
}
