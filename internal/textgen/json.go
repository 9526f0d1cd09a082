package textgen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fenceRe = regexp.MustCompile("(?s)^```(\\w*)?\\s*\\n?(.*?)\\n?\\s*```$")

// stripFence removes a surrounding ```json ... ``` block if the model added one.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil && m[2] != "" {
		return strings.TrimSpace(m[2])
	}
	return s
}

// decodeJSON unmarshals model output into v, repairing almost-JSON (trailing commas,
// single quotes, truncated objects) before giving up.
func decodeJSON(raw string, v any) error {
	s := stripFence(raw)
	if s == "" {
		return errors.New("empty JSON response")
	}
	err := json.Unmarshal([]byte(s), v)
	if err == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(s)
	if repairErr != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("invalid JSON response after repair: %w", err)
	}
	return nil
}

const minQuestionOptions = 2

// decodeQuestions accepts both a bare array and an object wrapping it under "questions".
// Questions without text or with fewer than two non-blank options are dropped.
func decodeQuestions(raw string) ([]Question, error) {
	var msg json.RawMessage
	if err := decodeJSON(raw, &msg); err != nil {
		return nil, err
	}

	var questions []Question
	if trimmed := bytes.TrimSpace(msg); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Questions []Question `json:"questions"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid questions object: %w", err)
		}
		questions = wrapped.Questions
	} else if err := json.Unmarshal(trimmed, &questions); err != nil {
		return nil, fmt.Errorf("invalid questions array: %w", err)
	}

	valid := questions[:0]
	for _, q := range questions {
		q.Question = strings.TrimSpace(q.Question)
		options := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			if o = strings.TrimSpace(o); o != "" {
				options = append(options, o)
			}
		}
		// A question is answered by picking an option, so it needs a real choice.
		if q.Question == "" || len(options) < minQuestionOptions {
			continue
		}
		q.Options = options
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, errors.New("no questions in response")
	}
	return valid, nil
}
