package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"medhistory-skill/internal/domain"
)

// loadQuestionnaireFile parses and validates a questionnaire authored in YAML.
func loadQuestionnaireFile(path string) (domain.Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("read questionnaire: %w", err)
	}
	return parseQuestionnaire(data)
}

func parseQuestionnaire(data []byte) (domain.Questionnaire, error) {
	var q domain.Questionnaire
	if err := yaml.Unmarshal(data, &q); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("parse questionnaire: %w", err)
	}
	if err := q.Validate(); err != nil {
		return domain.Questionnaire{}, err
	}
	return q, nil
}

// questionnaireJSON renders the document in the JSON form the skill reads
// from Parameter Store.
func questionnaireJSON(q domain.Questionnaire) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encode questionnaire: %w", err)
	}
	return string(data), nil
}
