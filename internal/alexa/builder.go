package alexa

import "strings"

const envelopeVersion = "1.0"

// ResponseBuilder assembles a ResponseEnvelope one directive at a time.
type ResponseBuilder struct {
	speech     string
	reprompt   string
	attributes map[string]any
	endSession bool
}

// NewResponse returns an empty builder for one skill turn.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{}
}

// Speak sets the output speech. Text may contain SSML markup; the <speak>
// wrapper is added on Build if missing.
func (b *ResponseBuilder) Speak(text string) *ResponseBuilder {
	b.speech = text
	return b
}

// Reprompt sets the speech used when the user does not answer.
func (b *ResponseBuilder) Reprompt(text string) *ResponseBuilder {
	b.reprompt = text
	return b
}

// WithSessionAttributes attaches the attribute map echoed back on the next
// request for this session.
func (b *ResponseBuilder) WithSessionAttributes(attrs map[string]any) *ResponseBuilder {
	b.attributes = attrs
	return b
}

// EndSession marks the session finished after this response.
func (b *ResponseBuilder) EndSession() *ResponseBuilder {
	b.endSession = true
	return b
}

// Build produces the final envelope.
func (b *ResponseBuilder) Build() ResponseEnvelope {
	env := ResponseEnvelope{
		Version:           envelopeVersion,
		SessionAttributes: b.attributes,
		Response: Response{
			ShouldEndSession: b.endSession,
		},
	}
	if b.speech != "" {
		env.Response.OutputSpeech = ssmlSpeech(b.speech)
	}
	if b.reprompt != "" {
		env.Response.Reprompt = &Reprompt{OutputSpeech: ssmlSpeech(b.reprompt)}
	}
	return env
}

func ssmlSpeech(text string) *OutputSpeech {
	return &OutputSpeech{Type: "SSML", SSML: wrapSSML(text)}
}

func wrapSSML(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "<speak>") {
		return text
	}
	return "<speak>" + text + "</speak>"
}
