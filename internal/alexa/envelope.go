// Package alexa holds the minimal Alexa Skills Kit wire shapes used by the
// skill handler, plus a small response builder.
package alexa

// Request types delivered by the Alexa service.
const (
	RequestTypeLaunch       = "LaunchRequest"
	RequestTypeIntent       = "IntentRequest"
	RequestTypeSessionEnded = "SessionEndedRequest"
)

// Built-in intents every custom skill is expected to handle.
const (
	IntentHelp   = "AMAZON.HelpIntent"
	IntentStop   = "AMAZON.StopIntent"
	IntentCancel = "AMAZON.CancelIntent"
)

// RequestEnvelope is the minimal request shape sent to the skill endpoint.
type RequestEnvelope struct {
	Version string  `json:"version"`
	Session Session `json:"session"`
	Request Request `json:"request"`
}

// Session carries the Alexa session and its attribute map. The attributes are
// a flat JSON object and round-trip the interview state between turns.
type Session struct {
	New        bool           `json:"new"`
	SessionID  string         `json:"sessionId"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Request is the polymorphic request body; Intent is only populated for
// IntentRequest, Reason only for SessionEndedRequest.
type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp,omitempty"`
	Locale    string `json:"locale,omitempty"`
	Intent    Intent `json:"intent,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Intent is a resolved user intention with its slot values.
type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

// Slot is a single captured slot value.
type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// SlotValue returns the raw value for a named slot, or "" when the slot is
// absent or was not filled.
func (i Intent) SlotValue(name string) string {
	s, ok := i.Slots[name]
	if !ok {
		return ""
	}
	return s.Value
}

// SlotValues flattens the intent slots into a name→value map.
func (i Intent) SlotValues() map[string]string {
	if len(i.Slots) == 0 {
		return nil
	}
	vals := make(map[string]string, len(i.Slots))
	for name, s := range i.Slots {
		vals[name] = s.Value
	}
	return vals
}

// ResponseEnvelope is the response shape returned to the Alexa service.
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          Response       `json:"response"`
}

// Response holds the speech output and session directive for one turn.
type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	ShouldEndSession bool          `json:"shouldEndSession"`
}

// OutputSpeech is SSML speech. Plain text is wrapped by the builder so that
// pause markup in questionnaire transitions renders correctly.
type OutputSpeech struct {
	Type string `json:"type"`
	SSML string `json:"ssml,omitempty"`
}

// Reprompt is spoken when the user stays silent after a question.
type Reprompt struct {
	OutputSpeech *OutputSpeech `json:"outputSpeech,omitempty"`
}
