package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"medhistory-skill/internal/domain"
)

const (
	counterSessionID = "session_id"
	counterPatientID = "patient_id"

	msgBeginPrefix     = "Great! Let me start by asking your personal information. "
	msgNoMoreQuestions = "No further questions. Thank you."
	msgSaved           = "Okay, your %s has been saved."
	msgNotCaught       = "I didn't catch that. Could you please provide your %s again?"
	msgRepeat          = "Can you repeat your %s?"
	msgInvalid         = "I'm sorry, but %s doesn't seem valid. %s"
	msgHelp            = "I will ask you a series of questions about your medical history, one at a time. " +
		"Answer each question and I will record it. To begin, say: start my medical history."
	msgGoodbye = "Goodbye."

	pauseBreak = `<break time="1s"/>`
)

// ParamGetter loads configuration content from the parameter store.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// AnswerReviewer validates and condenses spoken answers.
type AnswerReviewer interface {
	Validate(ctx context.Context, slotName, value, question string) (domain.ValidationResult, error)
	Extract(ctx context.Context, question, response string) (string, error)
}

// StateStore persists interview progress and allocates IDs.
type StateStore interface {
	NextSequence(ctx context.Context, name string) (int, error)
	SaveAnswer(ctx context.Context, sessionID, patientID int, questionID, questionTitle, answer, sessionStart string) error
}

// Result is the outcome of one interview turn.
type Result struct {
	Speech     string
	Reprompt   string
	EndSession bool
	State      domain.InterviewState
}

// InterviewService runs the scripted medical history interview.
type InterviewService struct {
	params      ParamGetter
	reviewer    AnswerReviewer
	store       StateStore
	paramPrefix string

	cacheMu       sync.RWMutex
	cacheLoaded   bool
	questionnaire domain.Questionnaire
}

// NewInterviewService wires the interview flow to its dependencies.
func NewInterviewService(p ParamGetter, r AnswerReviewer, s StateStore, paramPrefix string) (*InterviewService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if r == nil {
		return nil, errors.New("usecase: answer reviewer must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &InterviewService{
		params:      p,
		reviewer:    r,
		store:       s,
		paramPrefix: paramPrefix,
	}, nil
}

// Launch starts a new interview session: allocates session and patient IDs
// and speaks the questionnaire opening.
func (s *InterviewService) Launch(ctx context.Context) (Result, error) {
	q, err := s.loadQuestionnaire(ctx)
	if err != nil {
		return Result{}, newError(ErrorInternal, "questionnaire_load_error", err)
	}

	st, err := s.newSessionState(ctx)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Speech:   q.Opening,
		Reprompt: q.Opening,
		State:    st,
	}, nil
}

// Begin handles the patient's ready confirmation: resets the position to the
// first question and asks it.
func (s *InterviewService) Begin(ctx context.Context, st domain.InterviewState) (Result, error) {
	q, err := s.loadQuestionnaire(ctx)
	if err != nil {
		return Result{}, newError(ErrorInternal, "questionnaire_load_error", err)
	}
	if st.SessionID == 0 {
		// Fresh or corrupt session attributes: start a new session.
		st, err = s.newSessionState(ctx)
		if err != nil {
			return Result{}, err
		}
	}

	st.Section = 0
	st.Question = 0
	first, ok := q.QuestionAt(0, 0)
	if !ok {
		return Result{}, newError(ErrorInternal, "questionnaire_empty", nil)
	}

	speech := msgBeginPrefix + first.Text
	return Result{Speech: speech, Reprompt: speech, State: st}, nil
}

// CaptureAnswer processes one spoken answer: resolves the slot for the current
// question, normalizes spoken forms, reviews the answer with the AI, persists
// it, and moves to the next question or section.
func (s *InterviewService) CaptureAnswer(ctx context.Context, st domain.InterviewState, slots map[string]string) (Result, error) {
	q, err := s.loadQuestionnaire(ctx)
	if err != nil {
		return Result{}, newError(ErrorInternal, "questionnaire_load_error", err)
	}
	if st.SessionID == 0 {
		st, err = s.newSessionState(ctx)
		if err != nil {
			return Result{}, err
		}
	}

	current, ok := q.QuestionAt(st.Section, st.Question)
	if !ok {
		return Result{Speech: msgNoMoreQuestions, EndSession: true, State: st}, nil
	}

	slotName := slotForQuestion(current.Text)
	field := fieldLabel(slotName)
	value := s.normalizedValue(ctx, slotName, current, slots)

	if value == "" {
		return Result{
			Speech:   fmt.Sprintf(msgNotCaught, field),
			Reprompt: fmt.Sprintf(msgRepeat, field),
			State:    st,
		}, nil
	}

	review, err := s.reviewer.Validate(ctx, slotName, value, current.Text)
	if err != nil {
		// The interview never stalls on a review outage.
		slog.Warn("answer validation unavailable, accepting answer as spoken", "questionId", current.ID, "err", err)
		review = domain.ValidationResult{Valid: true, Value: value}
	}
	if !review.Valid {
		speech := fmt.Sprintf(msgInvalid, value, review.Value)
		return Result{Speech: speech, Reprompt: review.Value, State: st}, nil
	}

	answer := review.Value
	if slotName == "name" {
		st.PatientName = answer
	}

	if err := s.store.SaveAnswer(ctx, st.SessionID, st.PatientID, current.ID, current.Title, answer, st.SessionStart); err != nil {
		return Result{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}

	speech := fmt.Sprintf(msgSaved, field)
	st.Question++

	if next, ok := q.QuestionAt(st.Section, st.Question); ok {
		speech += pauseBreak + " Here is your next question: " + next.Text
		return Result{Speech: speech, Reprompt: speech, State: st}, nil
	}

	st.Section++
	st.Question = 0
	if next, ok := q.QuestionAt(st.Section, 0); ok {
		speech += pauseBreak + " " + thanks(st.PatientName) + " Let's move to the next section. " + next.Text
		return Result{Speech: speech, Reprompt: speech, State: st}, nil
	}

	return Result{Speech: q.Closing, EndSession: true, State: st}, nil
}

// Help explains the interview without losing the patient's place.
func (s *InterviewService) Help(st domain.InterviewState) Result {
	return Result{Speech: msgHelp, Reprompt: msgHelp, State: st}
}

// Stop ends the session. Collected answers are already persisted per turn.
func (s *InterviewService) Stop() Result {
	return Result{Speech: msgGoodbye, EndSession: true}
}

// normalizedValue extracts the slot value and applies spoken-form fixups:
// title-cased names, digit ordinals in dates, dictated email separators, and
// AI extraction for free-text answers.
func (s *InterviewService) normalizedValue(ctx context.Context, slotName string, current domain.Question, slots map[string]string) string {
	value := strings.TrimSpace(slots[slotName])
	if value == "" {
		return ""
	}

	switch slotName {
	case "name":
		value = titleCaseName(value)
	case "date_of_birth":
		value = stripOrdinals(value)
	}
	if strings.Contains(current.Text, "Email") {
		value = normalizeSpokenEmail(value)
	}

	if slotName == slotResponse {
		extracted, err := s.reviewer.Extract(ctx, current.Text, value)
		if err != nil {
			slog.Warn("answer extraction unavailable, storing answer as spoken", "questionId", current.ID, "err", err)
		} else if strings.TrimSpace(extracted) != "" {
			value = extracted
		}
	}
	return value
}

func (s *InterviewService) newSessionState(ctx context.Context) (domain.InterviewState, error) {
	sessionID, err := s.store.NextSequence(ctx, counterSessionID)
	if err != nil {
		return domain.InterviewState{}, newError(ErrorInternal, "counter_error", err)
	}
	patientID, err := s.store.NextSequence(ctx, counterPatientID)
	if err != nil {
		return domain.InterviewState{}, newError(ErrorInternal, "counter_error", err)
	}
	return domain.InterviewState{
		SessionID:    sessionID,
		PatientID:    patientID,
		SessionStart: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// loadQuestionnaire fetches and caches the interview script from SSM. The
// cache is retried on the next request after a failed load.
func (s *InterviewService) loadQuestionnaire(ctx context.Context) (domain.Questionnaire, error) {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		q := s.questionnaire
		s.cacheMu.RUnlock()
		return q, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return s.questionnaire, nil
	}

	raw, err := s.params.GetParameter(ctx, s.paramPrefix+"/questionnaire")
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("usecase: load questionnaire: %w", err)
	}
	var q domain.Questionnaire
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("usecase: decode questionnaire: %w", err)
	}
	if err := q.Validate(); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("usecase: validate questionnaire: %w", err)
	}

	s.questionnaire = q
	s.cacheLoaded = true
	return q, nil
}

func thanks(patientName string) string {
	if strings.TrimSpace(patientName) == "" {
		return "Thank you."
	}
	return "Thanks " + patientName + "."
}
