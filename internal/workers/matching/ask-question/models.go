// internal/workers/matching/ask-question/models.go
package askquestion

import "circ-exchange/internal/common/validation"

type Input struct {
	Question string `json:"question"`
}

type Output struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "required": ["question"],
  "properties": {
    "question": {"type": "string", "minLength": 1, "pattern": "\\S"}
  }
}`)
