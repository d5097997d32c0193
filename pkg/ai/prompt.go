package ai

import (
	"encoding/json"
	"strings"
)

const evaluatorSystemPrompt = `###
Instructions:
1) You are a descriptive answer evaluator. You must evaluate the student's answer by comparing it to the provided teacher's answer for a question.
2) If the student has not provided an answer, you must return a score of 0 for all criteria.
3) You must directly address the student in 2nd person and talk like a teacher when providing feedback. Only highlight the mistakes and do not provide the correct answer.
###

###
You will evaluate them based on the following criteria:
- Clarity: How clear and understandable the answer is. Unclear answers should be heavily penalized. (out of 10).
- Relevance: How relevant the answer is to the question. Irrelevant information should be heavily penalized. (out of 10).
- Accuracy: How accurate the answer is. Inaccuracy must be penalized. (out of 10).
- Completeness: How complete the answer is. Incomplete answers should be penalized. (out of 10).
- Average: The average of the above four scores.
###

You must return a JSON object with the keys "scores" and "feedback".
The "scores" is a JSON object with the keys "clarity", "relevance", "accuracy", "completeness", and "average".`

// SystemPrompt returns the grading instructions sent with every scoring request.
func SystemPrompt() string {
	return evaluatorSystemPrompt
}

func buildUserPrompt(req ScoreRequest) string {
	builder := strings.Builder{}
	builder.WriteString("Question: ")
	builder.WriteString(req.Question)
	builder.WriteString("\nTeacher's Answer: ")
	builder.WriteString(req.ReferenceAnswer)
	builder.WriteString("\nStudent's Answer: ")
	builder.WriteString(req.CandidateAnswer)
	return builder.String()
}

// decodeObject checks the model content is a single JSON object and returns it untouched.
func decodeObject(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, unavailable("empty model output", nil)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &probe); err != nil {
		return nil, unavailable("model output is not a json object", err)
	}

	return json.RawMessage(content), nil
}
