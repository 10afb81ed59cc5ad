package usecase

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// slotMapping resolves which interaction-model slot carries the answer for a
// question, keyed by a phrase in the question title. Anything unmatched lands
// in the free-text "response" slot.
var slotMapping = map[string]string{
	"Full Name":      "name",
	"Date of Birth":  "date_of_birth",
	"Gender":         "gender",
	"Contact Number": "phone_number",
}

const slotResponse = "response"

// ordinalSuffix matches spoken date ordinals like "21st" or "3rd". Anchoring
// on the digits keeps month names intact.
var ordinalSuffix = regexp.MustCompile(`\b(\d+)(?:st|nd|rd|th)\b`)

// spokenEmail rewrites dictated email separators. The longer " at mark "
// pattern is listed first so it wins over plain " at ".
var spokenEmail = strings.NewReplacer(
	" at mark ", "@",
	" att ", "@",
	" at ", "@",
	" dot ", ".",
)

// slotForQuestion picks the slot name for a scripted question.
func slotForQuestion(questionText string) string {
	for phrase, slot := range slotMapping {
		if strings.Contains(questionText, phrase) {
			return slot
		}
	}
	return slotResponse
}

// fieldLabel is the spoken form of a slot name ("date_of_birth" reads as
// "date of birth").
func fieldLabel(slotName string) string {
	return strings.ReplaceAll(slotName, "_", " ")
}

// titleCaseName capitalises a dictated name ("jane citizen" to "Jane Citizen").
func titleCaseName(v string) string {
	return cases.Title(language.English).String(strings.ToLower(v))
}

// stripOrdinals turns "21st of August" into "21 of August".
func stripOrdinals(v string) string {
	return ordinalSuffix.ReplaceAllString(v, "$1")
}

// normalizeSpokenEmail turns "jane at example dot com" into
// "jane@example.com".
func normalizeSpokenEmail(v string) string {
	return spokenEmail.Replace(v)
}
