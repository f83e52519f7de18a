package models

// Label is the classification outcome for a user request. The set is closed:
// the classifier never produces a value outside the constants below.
type Label string

const (
	// LabelGenerateSQL routes requests that need data read from the database.
	LabelGenerateSQL Label = "generate_sql"
	// LabelAnalyzeData routes requests about data already retrieved.
	LabelAnalyzeData Label = "analyze_data"
	// LabelAnswerDirectly routes requests the model can answer on its own.
	LabelAnswerDirectly Label = "answer_directly"
	// LabelNotAllowed routes DDL/DML requests, which are refused.
	LabelNotAllowed Label = "not_allowed"
	// LabelNotDefined is the safety default when classification is
	// inconclusive. It is intercepted by the router, never dispatched.
	LabelNotDefined Label = "not_defined"
)

// AllLabels returns the closed label set, in a fixed order.
func AllLabels() []Label {
	return []Label{
		LabelGenerateSQL,
		LabelAnalyzeData,
		LabelAnswerDirectly,
		LabelNotAllowed,
		LabelNotDefined,
	}
}

// DispatchableLabels returns the labels that must have a registered handler.
func DispatchableLabels() []Label {
	return []Label{
		LabelGenerateSQL,
		LabelAnalyzeData,
		LabelAnswerDirectly,
		LabelNotAllowed,
	}
}

// Valid reports whether l belongs to the closed label set.
func (l Label) Valid() bool {
	switch l {
	case LabelGenerateSQL, LabelAnalyzeData, LabelAnswerDirectly, LabelNotAllowed, LabelNotDefined:
		return true
	}
	return false
}
