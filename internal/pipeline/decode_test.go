package pipeline

import (
	"testing"

	"talking-avatar/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReplyShapes(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantShape replyShape
		wantTexts []string
	}{
		{
			name:      "bare array",
			content:   `[{"text":"a","facialExpression":"smile","animation":"Talking_0"}]`,
			wantShape: shapeArray,
			wantTexts: []string{"a"},
		},
		{
			name:      "messages key",
			content:   `{"messages":[{"text":"a"},{"text":"b"}]}`,
			wantShape: shapeMessagesKey,
			wantTexts: []string{"a", "b"},
		},
		{
			name:      "single array property",
			content:   ` {"reply":[{"text":"a"}],"mood":"happy"} `,
			wantShape: shapeSingleProperty,
			wantTexts: []string{"a"},
		},
		{
			name:      "empty list",
			content:   `[]`,
			wantShape: shapeArray,
			wantTexts: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeReply(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, got.shape)

			texts := make([]string, 0, len(got.segments))
			for _, s := range got.segments {
				texts = append(texts, s.Text)
			}
			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestDecodeReplyMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"plain text", "Hello there!"},
		{"broken json", `[{"text":"a"`},
		{"object without arrays", `{"text":"a"}`},
		{"two array properties", `{"a":[{"text":"x"}],"b":[{"text":"y"}]}`},
		{"messages not array", `{"messages":"hi"}`},
		{"messages null", `{"messages":null}`},
		{"segment without text", `[{"facialExpression":"smile"}]`},
		{"segment wrong type", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeReply(tt.content)
			assert.ErrorIs(t, err, ErrMalformedReply)
		})
	}
}

func TestDecodeReplyTruncatesToMaxSegments(t *testing.T) {
	got, err := decodeReply(`[{"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"},{"text":"5"}]`)
	require.NoError(t, err)

	assert.Len(t, got.segments, MaxSegments)
	assert.Equal(t, 2, got.truncated)
	assert.Equal(t, "3", got.segments[2].Text)
}

func TestDecodeReplyNormalizesUnknownTags(t *testing.T) {
	got, err := decodeReply(`[{"text":"a","facialExpression":"smirk","animation":"Dancing"},{"text":"b","facialExpression":"funnyFace","animation":"Rumba"}]`)
	require.NoError(t, err)

	assert.Equal(t, models.ExpressionDefault, got.segments[0].FacialExpression)
	assert.Equal(t, models.AnimationIdle, got.segments[0].Animation)
	assert.Equal(t, models.ExpressionFunnyFace, got.segments[1].FacialExpression)
	assert.Equal(t, models.AnimationRumba, got.segments[1].Animation)
}

func TestSystemPromptListsTags(t *testing.T) {
	assert.Contains(t, systemPrompt, "JSON array")
	assert.Contains(t, systemPrompt, "maximum of 3 messages")
	assert.Contains(t, systemPrompt, "funnyFace")
	assert.Contains(t, systemPrompt, "Terrified")
}

func TestReplyShapeNames(t *testing.T) {
	assert.Equal(t, "array", shapeArray.String())
	assert.Equal(t, "messages", shapeMessagesKey.String())
	assert.Equal(t, "single-property", shapeSingleProperty.String())
}
