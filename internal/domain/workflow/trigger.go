package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerExtracted        Trigger = "EXTRACTED"
	TriggerExtractionFailed Trigger = "EXTRACTION_FAILED"
	TriggerMatched          Trigger = "MATCHED"
	TriggerDetected         Trigger = "DETECTED"
	TriggerResolved         Trigger = "RESOLVED"
	TriggerReviewed         Trigger = "REVIEWED"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
