package pipeline

import (
	"fmt"
	"strings"

	"talking-avatar/backend/internal/models"
)

// systemPrompt constrains the model to the segment format the avatar can play
var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	expressions := make([]string, len(models.FacialExpressions))
	for i, e := range models.FacialExpressions {
		expressions[i] = string(e)
	}
	animations := make([]string, len(models.Animations))
	for i, a := range models.Animations {
		animations[i] = string(a)
	}

	return fmt.Sprintf(`You are a virtual girlfriend.
You will always reply with a JSON array of messages. With a maximum of %d messages.
Each message has a text, facialExpression, and animation property.
The different facial expressions are: %s.
The different animations are: %s.`,
		MaxSegments,
		strings.Join(expressions, ", "),
		strings.Join(animations, ", "),
	)
}
