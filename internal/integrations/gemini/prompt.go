package gemini

import (
	"fmt"
	"strings"
)

// validationRules describes, per slot, what counts as a usable answer.
var validationRules = map[string]string{
	"name":          "Ensure the name contains only alphabetic characters and follows a typical full name format.",
	"date_of_birth": "Convert the response into YYYY-MM-DD format if possible. If invalid, request clarification.",
	"gender":        "Ensure the response is either 'male' or 'female'.",
	"phone_number":  "Ensure the response is a valid phone number (in Australia). If valid, convert spoken numbers into digit format.",
	"response":      "Ensure the response is relevant to the question, contains key information, and is not off-topic.",
}

func validationPrompt(slotName, value, question string) string {
	rule, ok := validationRules[slotName]
	if !ok {
		rule = validationRules["response"]
	}
	return strings.Join([]string{
		fmt.Sprintf("The patient was asked: %q", question),
		fmt.Sprintf("Patient Response: %q", value),
		"",
		"Validation rule: " + rule,
		"",
		"- Does the response correctly answer the question? Answer 'VALID' or 'INVALID'.",
		`- If the response can be formatted (e.g., date, phone number, email, home address or name correction), return "VALID|[Formatted Value]".`,
		`- If the response is valid but doesn't need formatting, return "VALID".`,
		`- If INVALID, rephrase the original question to make it simpler and clearer to help the patient understand and ensure they provide all necessary details. In this case, the format must be: "INVALID|[Reworded Question]"`,
	}, "\n")
}

func extractionPrompt(question, response string) string {
	return strings.Join([]string{
		fmt.Sprintf("The patient was asked: %q", question),
		fmt.Sprintf("The patient responded: %q", response),
		"",
		`Extract the key medical details in a concise format (e.g., "hypertension, diabetes").`,
		"If no structured details can be extracted, return the original response.",
	}, "\n")
}

func followUpPrompt(question, answer string) string {
	return strings.Join([]string{
		fmt.Sprintf("Patient was asked: %q", question),
		fmt.Sprintf("Patient responded: %q", answer),
		"What is the best follow-up question to ask next? Return only the follow-up question.",
	}, "\n")
}
