package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"medhistory-skill/internal/domain"
)

const testQuestionnaire = `{
	"opening": "Welcome to the medical history taker. Are you ready to begin?",
	"closing": "That completes your medical history. Thank you and goodbye.",
	"sections": [
		{
			"title": "Personal Information",
			"questions": [
				{"question_id": "q0_0", "question_title": "Full Name", "question": "What is your Full Name?"},
				{"question_id": "q0_1", "question_title": "Date of Birth", "question": "What is your Date of Birth?"},
				{"question_id": "q0_2", "question_title": "Email Address", "question": "What is your Email Address?"}
			]
		},
		{
			"title": "Medical Background",
			"questions": [
				{"question_id": "q1_0", "question_title": "Existing Conditions", "question": "Do you have any existing medical conditions?"}
			]
		}
	]
}`

type mockParams struct {
	vals map[string]string
	err  error
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param not found: %s", name)
	}
	return v, nil
}

type transientParams struct {
	*mockParams
	failOnce bool
}

func (p *transientParams) GetParameter(ctx context.Context, name string) (string, error) {
	if p.failOnce {
		p.failOnce = false
		return "", errors.New("temporary ssm failure")
	}
	return p.mockParams.GetParameter(ctx, name)
}

type mockReviewer struct {
	validateResult *domain.ValidationResult
	validateErr    error
	extractResult  string
	extractErr     error

	validateCalls    int
	extractCalls     int
	lastSlotName     string
	lastValue        string
	lastQuestion     string
	lastExtractInput string
}

func (m *mockReviewer) Validate(_ context.Context, slotName, value, question string) (domain.ValidationResult, error) {
	m.validateCalls++
	m.lastSlotName = slotName
	m.lastValue = value
	m.lastQuestion = question
	if m.validateErr != nil {
		return domain.ValidationResult{}, m.validateErr
	}
	if m.validateResult != nil {
		return *m.validateResult, nil
	}
	return domain.ValidationResult{Valid: true, Value: value}, nil
}

func (m *mockReviewer) Extract(_ context.Context, _ string, response string) (string, error) {
	m.extractCalls++
	m.lastExtractInput = response
	if m.extractErr != nil {
		return "", m.extractErr
	}
	if m.extractResult != "" {
		return m.extractResult, nil
	}
	return response, nil
}

type mockStore struct {
	seqs       map[string]int
	seqErr     error
	saveErr    error
	seqCalls   int
	saveCalls  int
	savedSess  int
	savedPat   int
	savedQID   string
	savedTitle string
	savedAns   string
	savedStart string
}

func (m *mockStore) NextSequence(_ context.Context, name string) (int, error) {
	m.seqCalls++
	if m.seqErr != nil {
		return 0, m.seqErr
	}
	if m.seqs == nil {
		return 1, nil
	}
	return m.seqs[name], nil
}

func (m *mockStore) SaveAnswer(_ context.Context, sessionID, patientID int, questionID, questionTitle, answer, sessionStart string) error {
	m.saveCalls++
	m.savedSess = sessionID
	m.savedPat = patientID
	m.savedQID = questionID
	m.savedTitle = questionTitle
	m.savedAns = answer
	m.savedStart = sessionStart
	return m.saveErr
}

func defaultParams() *mockParams {
	return &mockParams{vals: map[string]string{
		"/medhistory/questionnaire": testQuestionnaire,
	}}
}

func newTestService(t *testing.T, p ParamGetter, r AnswerReviewer, s StateStore) *InterviewService {
	t.Helper()
	svc, err := NewInterviewService(p, r, s, "/medhistory")
	require.NoError(t, err)
	return svc
}

func midInterviewState() domain.InterviewState {
	return domain.InterviewState{
		SessionID:    12,
		PatientID:    7,
		Section:      0,
		Question:     0,
		SessionStart: "2026-08-23T10:00:00Z",
	}
}

func expectInterviewError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewInterviewService_ValidatesDependencies(t *testing.T) {
	_, err := NewInterviewService(nil, &mockReviewer{}, &mockStore{}, "/medhistory")
	require.Error(t, err)

	_, err = NewInterviewService(defaultParams(), nil, &mockStore{}, "/medhistory")
	require.Error(t, err)

	_, err = NewInterviewService(defaultParams(), &mockReviewer{}, nil, "/medhistory")
	require.Error(t, err)

	_, err = NewInterviewService(defaultParams(), &mockReviewer{}, &mockStore{}, "  ")
	require.Error(t, err)
}

func TestLaunch_HappyPath(t *testing.T) {
	store := &mockStore{seqs: map[string]int{counterSessionID: 12, counterPatientID: 7}}
	svc := newTestService(t, defaultParams(), &mockReviewer{}, store)

	out, err := svc.Launch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Welcome to the medical history taker. Are you ready to begin?", out.Speech)
	require.Equal(t, out.Speech, out.Reprompt)
	require.False(t, out.EndSession)
	require.Equal(t, 12, out.State.SessionID)
	require.Equal(t, 7, out.State.PatientID)
	require.Zero(t, out.State.Section)
	require.Zero(t, out.State.Question)
	require.NotEmpty(t, out.State.SessionStart)
}

func TestLaunch_QuestionnaireErrors(t *testing.T) {
	svc := newTestService(t, &mockParams{err: errors.New("ssm unavailable")}, &mockReviewer{}, &mockStore{})
	_, err := svc.Launch(context.Background())
	expectInterviewError(t, err, ErrorInternal, "questionnaire_load_error")

	svc = newTestService(t, &mockParams{vals: map[string]string{"/medhistory/questionnaire": "not-json"}}, &mockReviewer{}, &mockStore{})
	_, err = svc.Launch(context.Background())
	expectInterviewError(t, err, ErrorInternal, "questionnaire_load_error")

	svc = newTestService(t, &mockParams{vals: map[string]string{"/medhistory/questionnaire": `{"opening":"hi"}`}}, &mockReviewer{}, &mockStore{})
	_, err = svc.Launch(context.Background())
	expectInterviewError(t, err, ErrorInternal, "questionnaire_load_error")
}

func TestLaunch_CounterError(t *testing.T) {
	svc := newTestService(t, defaultParams(), &mockReviewer{}, &mockStore{seqErr: errors.New("dynamodb down")})
	_, err := svc.Launch(context.Background())
	expectInterviewError(t, err, ErrorInternal, "counter_error")
}

func TestLoadQuestionnaire_IsRetriedOnNextRequest(t *testing.T) {
	p := &transientParams{mockParams: defaultParams(), failOnce: true}
	svc := newTestService(t, p, &mockReviewer{}, &mockStore{})

	_, err := svc.Launch(context.Background())
	expectInterviewError(t, err, ErrorInternal, "questionnaire_load_error")

	out, err := svc.Launch(context.Background())
	require.NoError(t, err)
	require.Contains(t, out.Speech, "Welcome")
}

func TestBegin_ResetsToFirstQuestion(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), &mockReviewer{}, store)

	st := midInterviewState()
	st.Section = 1
	st.Question = 3
	out, err := svc.Begin(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, "Great! Let me start by asking your personal information. What is your Full Name?", out.Speech)
	require.Zero(t, out.State.Section)
	require.Zero(t, out.State.Question)
	require.Equal(t, 12, out.State.SessionID)
	require.Zero(t, store.seqCalls, "existing session must not allocate new IDs")
}

func TestBegin_FreshStateAllocatesSession(t *testing.T) {
	store := &mockStore{seqs: map[string]int{counterSessionID: 31, counterPatientID: 18}}
	svc := newTestService(t, defaultParams(), &mockReviewer{}, store)

	out, err := svc.Begin(context.Background(), domain.InterviewState{})
	require.NoError(t, err)
	require.Equal(t, 31, out.State.SessionID)
	require.Equal(t, 18, out.State.PatientID)
	require.Equal(t, 2, store.seqCalls)
}

func TestCaptureAnswer_HappyPath_Name(t *testing.T) {
	reviewer := &mockReviewer{}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	out, err := svc.CaptureAnswer(context.Background(), midInterviewState(), map[string]string{"name": "jane citizen"})
	require.NoError(t, err)

	require.Equal(t, "name", reviewer.lastSlotName)
	require.Equal(t, "Jane Citizen", reviewer.lastValue, "name must be title-cased before review")
	require.Equal(t, "What is your Full Name?", reviewer.lastQuestion)

	require.Equal(t, 1, store.saveCalls)
	require.Equal(t, 12, store.savedSess)
	require.Equal(t, 7, store.savedPat)
	require.Equal(t, "q0_0", store.savedQID)
	require.Equal(t, "Full Name", store.savedTitle)
	require.Equal(t, "Jane Citizen", store.savedAns)
	require.Equal(t, "2026-08-23T10:00:00Z", store.savedStart)

	require.Contains(t, out.Speech, "Okay, your name has been saved.")
	require.Contains(t, out.Speech, "Here is your next question: What is your Date of Birth?")
	require.Equal(t, 1, out.State.Question)
	require.Equal(t, "Jane Citizen", out.State.PatientName)
	require.False(t, out.EndSession)
}

func TestCaptureAnswer_MissingSlotValue(t *testing.T) {
	reviewer := &mockReviewer{}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	st := midInterviewState()
	st.Question = 1
	out, err := svc.CaptureAnswer(context.Background(), st, map[string]string{})
	require.NoError(t, err)
	require.Equal(t, "I didn't catch that. Could you please provide your date of birth again?", out.Speech)
	require.Equal(t, "Can you repeat your date of birth?", out.Reprompt)
	require.Equal(t, 1, out.State.Question, "position must not advance")
	require.Zero(t, reviewer.validateCalls)
	require.Zero(t, store.saveCalls)
}

func TestCaptureAnswer_InvalidAnswerRetriesWithRewordedQuestion(t *testing.T) {
	reviewer := &mockReviewer{validateResult: &domain.ValidationResult{Valid: false, Value: "Please tell me just your first and last name."}}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	out, err := svc.CaptureAnswer(context.Background(), midInterviewState(), map[string]string{"name": "uhh maybe"})
	require.NoError(t, err)
	require.Contains(t, out.Speech, "doesn't seem valid")
	require.Contains(t, out.Speech, "Please tell me just your first and last name.")
	require.Zero(t, out.State.Question, "position must not advance on invalid answer")
	require.Zero(t, store.saveCalls)
}

func TestCaptureAnswer_ValidationOutageAcceptsAnswer(t *testing.T) {
	reviewer := &mockReviewer{validateErr: errors.New("gemini unavailable")}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	out, err := svc.CaptureAnswer(context.Background(), midInterviewState(), map[string]string{"name": "jane citizen"})
	require.NoError(t, err)
	require.Equal(t, 1, store.saveCalls)
	require.Equal(t, "Jane Citizen", store.savedAns)
	require.Contains(t, out.Speech, "has been saved")
}

func TestCaptureAnswer_ValidatedValueIsStored(t *testing.T) {
	reviewer := &mockReviewer{validateResult: &domain.ValidationResult{Valid: true, Value: "1990-08-21"}}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	st := midInterviewState()
	st.Question = 1
	_, err := svc.CaptureAnswer(context.Background(), st, map[string]string{"date_of_birth": "21st of August 1990"})
	require.NoError(t, err)
	require.Equal(t, "21 of August 1990", reviewer.lastValue, "ordinal suffix must be stripped before review")
	require.Equal(t, "1990-08-21", store.savedAns, "the formatted value must be persisted")
}

func TestCaptureAnswer_SpokenEmailIsNormalized(t *testing.T) {
	reviewer := &mockReviewer{}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	st := midInterviewState()
	st.Question = 2
	_, err := svc.CaptureAnswer(context.Background(), st, map[string]string{"response": "jane at example dot com"})
	require.NoError(t, err)
	require.Equal(t, 1, reviewer.extractCalls)
	require.Equal(t, "jane@example.com", reviewer.lastExtractInput)
}

func TestCaptureAnswer_FreeTextIsExtracted(t *testing.T) {
	reviewer := &mockReviewer{extractResult: "hypertension, diabetes"}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	st := midInterviewState()
	st.Section = 1
	_, err := svc.CaptureAnswer(context.Background(), st, map[string]string{"response": "I have high blood pressure and diabetes"})
	require.NoError(t, err)
	require.Equal(t, "hypertension, diabetes", reviewer.lastValue, "review must see the extracted value")
	require.Equal(t, "hypertension, diabetes", store.savedAns)
}

func TestCaptureAnswer_ExtractionOutageKeepsSpokenAnswer(t *testing.T) {
	reviewer := &mockReviewer{extractErr: errors.New("gemini unavailable")}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	st := midInterviewState()
	st.Section = 1
	_, err := svc.CaptureAnswer(context.Background(), st, map[string]string{"response": "just a sore knee"})
	require.NoError(t, err)
	require.Equal(t, "just a sore knee", store.savedAns)
}

func TestCaptureAnswer_SectionRollover(t *testing.T) {
	reviewer := &mockReviewer{}
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), reviewer, store)

	st := midInterviewState()
	st.Question = 2
	st.PatientName = "Jane Citizen"
	out, err := svc.CaptureAnswer(context.Background(), st, map[string]string{"response": "jane@example.com"})
	require.NoError(t, err)
	require.Contains(t, out.Speech, "Thanks Jane Citizen.")
	require.Contains(t, out.Speech, "Let's move to the next section. Do you have any existing medical conditions?")
	require.Equal(t, 1, out.State.Section)
	require.Zero(t, out.State.Question)
	require.False(t, out.EndSession)
}

func TestCaptureAnswer_SectionRolloverWithoutName(t *testing.T) {
	svc := newTestService(t, defaultParams(), &mockReviewer{}, &mockStore{})

	st := midInterviewState()
	st.Question = 2
	out, err := svc.CaptureAnswer(context.Background(), st, map[string]string{"response": "jane@example.com"})
	require.NoError(t, err)
	require.Contains(t, out.Speech, "Thank you. Let's move to the next section.")
}

func TestCaptureAnswer_FinalQuestionSpeaksClosingAndEndsSession(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, defaultParams(), &mockReviewer{}, store)

	st := midInterviewState()
	st.Section = 1
	out, err := svc.CaptureAnswer(context.Background(), st, map[string]string{"response": "none"})
	require.NoError(t, err)
	require.Equal(t, "That completes your medical history. Thank you and goodbye.", out.Speech)
	require.True(t, out.EndSession)
	require.Equal(t, 1, store.saveCalls, "the final answer must still be persisted")
}

func TestCaptureAnswer_PastEndOfScript(t *testing.T) {
	svc := newTestService(t, defaultParams(), &mockReviewer{}, &mockStore{})

	st := midInterviewState()
	st.Section = 5
	out, err := svc.CaptureAnswer(context.Background(), st, map[string]string{"response": "hello"})
	require.NoError(t, err)
	require.Equal(t, msgNoMoreQuestions, out.Speech)
	require.True(t, out.EndSession)
}

func TestCaptureAnswer_SaveError(t *testing.T) {
	svc := newTestService(t, defaultParams(), &mockReviewer{}, &mockStore{saveErr: errors.New("write failed")})
	_, err := svc.CaptureAnswer(context.Background(), midInterviewState(), map[string]string{"name": "jane citizen"})
	expectInterviewError(t, err, ErrorInternal, "dynamodb_write_error")
}

func TestCaptureAnswer_FreshStateAllocatesSession(t *testing.T) {
	store := &mockStore{seqs: map[string]int{counterSessionID: 44, counterPatientID: 21}}
	svc := newTestService(t, defaultParams(), &mockReviewer{}, store)

	out, err := svc.CaptureAnswer(context.Background(), domain.InterviewState{}, map[string]string{"name": "jane citizen"})
	require.NoError(t, err)
	require.Equal(t, 44, out.State.SessionID)
	require.Equal(t, 21, out.State.PatientID)
	require.Equal(t, 44, store.savedSess)
}

func TestHelp_KeepsState(t *testing.T) {
	svc := newTestService(t, defaultParams(), &mockReviewer{}, &mockStore{})
	st := midInterviewState()
	st.Question = 1
	out := svc.Help(st)
	require.Contains(t, out.Speech, "medical history")
	require.Equal(t, st, out.State)
	require.False(t, out.EndSession)
}

func TestStop_EndsSession(t *testing.T) {
	svc := newTestService(t, defaultParams(), &mockReviewer{}, &mockStore{})
	out := svc.Stop()
	require.Equal(t, msgGoodbye, out.Speech)
	require.True(t, out.EndSession)
}

func TestSlotForQuestion(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"What is your Full Name?", "name"},
		{"What is your Date of Birth?", "date_of_birth"},
		{"What is your Gender?", "gender"},
		{"What is your Contact Number?", "phone_number"},
		{"What is your Email Address?", "response"},
		{"Do you have any allergies?", "response"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, slotForQuestion(tc.question), "question=%q", tc.question)
	}
}

func TestTitleCaseName(t *testing.T) {
	require.Equal(t, "Jane Citizen", titleCaseName("jane citizen"))
	require.Equal(t, "Jane Citizen", titleCaseName("JANE CITIZEN"))
}

func TestStripOrdinals(t *testing.T) {
	require.Equal(t, "21 of August 1990", stripOrdinals("21st of August 1990"))
	require.Equal(t, "2 of June", stripOrdinals("2nd of June"))
	require.Equal(t, "3 of March", stripOrdinals("3rd of March"))
	require.Equal(t, "4 of April", stripOrdinals("4th of April"))
	require.Equal(t, "August first", stripOrdinals("August first"), "month names must not be mangled")
}

func TestNormalizeSpokenEmail(t *testing.T) {
	require.Equal(t, "jane@example.com", normalizeSpokenEmail("jane at example dot com"))
	require.Equal(t, "jane@example.com", normalizeSpokenEmail("jane at mark example dot com"))
	require.Equal(t, "jane@example.com", normalizeSpokenEmail("jane att example dot com"))
}

func TestFieldLabel(t *testing.T) {
	require.Equal(t, "date of birth", fieldLabel("date_of_birth"))
	require.Equal(t, "name", fieldLabel("name"))
}

func TestMidSpeechPause(t *testing.T) {
	reviewer := &mockReviewer{}
	svc := newTestService(t, defaultParams(), reviewer, &mockStore{})

	out, err := svc.CaptureAnswer(context.Background(), midInterviewState(), map[string]string{"name": "jane citizen"})
	require.NoError(t, err)
	require.True(t, strings.Contains(out.Speech, pauseBreak), "transition speech should pause between sentences")
}
