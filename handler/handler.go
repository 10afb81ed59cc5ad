// Package handler routes Alexa skill requests to the interview service.
package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"medhistory-skill/internal/alexa"
	"medhistory-skill/internal/domain"
	"medhistory-skill/internal/usecase"
)

// Custom intents defined in the skill's interaction model.
const (
	IntentStartMedicalHistory = "StartMedicalHistoryIntent"
	IntentCaptureAnswer       = "CaptureAnswerIntent"
)

const (
	msgServiceError  = "Sorry, I couldn't retrieve the questions. Please try again later."
	msgUnknownIntent = "Sorry, I didn't catch that. You can say: start my medical history."
)

// InterviewUseCase is the interview surface consumed by the handler.
type InterviewUseCase interface {
	Launch(ctx context.Context) (usecase.Result, error)
	Begin(ctx context.Context, st domain.InterviewState) (usecase.Result, error)
	CaptureAnswer(ctx context.Context, st domain.InterviewState, slots map[string]string) (usecase.Result, error)
	Help(st domain.InterviewState) usecase.Result
	Stop() usecase.Result
}

// Handler decodes skill request envelopes and dispatches per request type
// and intent.
type Handler struct {
	uc  InterviewUseCase
	log *slog.Logger
}

// NewHandler creates a Handler for the given interview use case.
func NewHandler(uc InterviewUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: interview use case must not be nil")
	}
	return &Handler{uc: uc, log: slog.Default()}, nil
}

// Handle processes one skill request. Infrastructure failures are spoken as a
// retrieval-error fallback rather than surfaced to the Alexa service, so the
// session survives transient outages.
func (h *Handler) Handle(ctx context.Context, env alexa.RequestEnvelope) (alexa.ResponseEnvelope, error) {
	requestID := env.Request.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := h.log.With(
		"requestId", requestID,
		"sessionId", env.Session.SessionID,
		"requestType", env.Request.Type,
	)

	switch env.Request.Type {
	case alexa.RequestTypeLaunch:
		log.Info("launching interview")
		res, err := h.uc.Launch(ctx)
		return h.respond(log, env, res, err)

	case alexa.RequestTypeIntent:
		return h.handleIntent(ctx, log, env)

	case alexa.RequestTypeSessionEnded:
		log.Info("session ended", "reason", env.Request.Reason)
		return alexa.NewResponse().Build(), nil

	default:
		log.Warn("unhandled request type")
		return fallback(env, msgUnknownIntent), nil
	}
}

func (h *Handler) handleIntent(ctx context.Context, log *slog.Logger, env alexa.RequestEnvelope) (alexa.ResponseEnvelope, error) {
	intent := env.Request.Intent
	log = log.With("intent", intent.Name)
	st := domain.StateFromAttributes(env.Session.Attributes)

	switch intent.Name {
	case IntentStartMedicalHistory:
		log.Info("starting medical history")
		res, err := h.uc.Begin(ctx, st)
		return h.respond(log, env, res, err)

	case IntentCaptureAnswer:
		log.Info("capturing answer", "section", st.Section, "question", st.Question)
		res, err := h.uc.CaptureAnswer(ctx, st, intent.SlotValues())
		return h.respond(log, env, res, err)

	case alexa.IntentHelp:
		return h.respond(log, env, h.uc.Help(st), nil)

	case alexa.IntentStop, alexa.IntentCancel:
		return h.respond(log, env, h.uc.Stop(), nil)

	default:
		log.Warn("unknown intent")
		return fallback(env, msgUnknownIntent), nil
	}
}

// respond converts an interview Result into a response envelope. Errors keep
// the session (and its attributes) intact so the patient can retry.
func (h *Handler) respond(log *slog.Logger, env alexa.RequestEnvelope, res usecase.Result, err error) (alexa.ResponseEnvelope, error) {
	if err != nil {
		log.Error("interview turn failed", "err", err)
		return fallback(env, msgServiceError), nil
	}

	b := alexa.NewResponse().Speak(res.Speech)
	if res.Reprompt != "" {
		b.Reprompt(res.Reprompt)
	}
	if res.EndSession {
		b.EndSession()
	} else {
		b.WithSessionAttributes(res.State.Attributes())
	}
	return b.Build(), nil
}

// fallback speaks a recovery message, echoing back the incoming session
// attributes unchanged.
func fallback(env alexa.RequestEnvelope, speech string) alexa.ResponseEnvelope {
	return alexa.NewResponse().
		Speak(speech).
		Reprompt(speech).
		WithSessionAttributes(env.Session.Attributes).
		Build()
}
