package domain

import "encoding/json"

// InterviewState is the per-session interview position. It travels inside the
// Alexa session attributes, so it must survive a JSON round trip.
type InterviewState struct {
	SessionID    int    `json:"sessionId"`
	PatientID    int    `json:"patientId"`
	Section      int    `json:"currentSection"`
	Question     int    `json:"currentQuestion"`
	PatientName  string `json:"patientName,omitempty"`
	SessionStart string `json:"sessionStart,omitempty"`
}

// StateFromAttributes decodes an InterviewState from Alexa session attributes.
// Missing or corrupt attributes yield a zero state, which the interview
// service treats as a fresh session.
func StateFromAttributes(attrs map[string]any) InterviewState {
	if len(attrs) == 0 {
		return InterviewState{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return InterviewState{}
	}
	var st InterviewState
	if err := json.Unmarshal(raw, &st); err != nil {
		return InterviewState{}
	}
	return st
}

// Attributes encodes the state back into a session attribute map.
func (s InterviewState) Attributes() map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil
	}
	return attrs
}

// AnswerRecord is one persisted question/answer pair for a patient session.
type AnswerRecord struct {
	PK            string
	SK            string
	SessionID     int
	PatientID     int
	QuestionID    string
	QuestionTitle string
	Answer        string
	AnsweredAt    string
	TTL           int64
}

// SessionMeta stores aggregate session state alongside the answers.
type SessionMeta struct {
	PK           string
	SK           string
	SessionID    int
	PatientID    int
	SessionStart string
	LastActivity string
	TTL          int64
}

// ValidationResult is the outcome of reviewing a spoken answer. When Valid is
// true, Value holds the answer (possibly reformatted); when false, Value holds
// a reworded question to ask the patient again.
type ValidationResult struct {
	Valid bool
	Value string
}
