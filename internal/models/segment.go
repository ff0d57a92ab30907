package models

import "encoding/json"

// FacialExpression is the mood tag the avatar shows while speaking a segment
type FacialExpression string

const (
	ExpressionSmile     FacialExpression = "smile"
	ExpressionSad       FacialExpression = "sad"
	ExpressionAngry     FacialExpression = "angry"
	ExpressionSurprised FacialExpression = "surprised"
	ExpressionFunnyFace FacialExpression = "funnyFace"
	ExpressionDefault   FacialExpression = "default"
)

// Animation is the body animation clip played with a segment
type Animation string

const (
	AnimationTalking0  Animation = "Talking_0"
	AnimationTalking1  Animation = "Talking_1"
	AnimationTalking2  Animation = "Talking_2"
	AnimationCrying    Animation = "Crying"
	AnimationLaughing  Animation = "Laughing"
	AnimationRumba     Animation = "Rumba"
	AnimationIdle      Animation = "Idle"
	AnimationTerrified Animation = "Terrified"
	AnimationAngry     Animation = "Angry"
)

// FacialExpressions lists every expression the front end knows how to render
var FacialExpressions = []FacialExpression{
	ExpressionSmile, ExpressionSad, ExpressionAngry,
	ExpressionSurprised, ExpressionFunnyFace, ExpressionDefault,
}

// Animations lists every animation clip the front end ships
var Animations = []Animation{
	AnimationTalking0, AnimationTalking1, AnimationTalking2,
	AnimationCrying, AnimationLaughing, AnimationRumba,
	AnimationIdle, AnimationTerrified, AnimationAngry,
}

// Valid reports whether e is one of the known expressions
func (e FacialExpression) Valid() bool {
	for _, known := range FacialExpressions {
		if e == known {
			return true
		}
	}
	return false
}

// Valid reports whether a is one of the known animations
func (a Animation) Valid() bool {
	for _, known := range Animations {
		if a == known {
			return true
		}
	}
	return false
}

// ReplySegment is one unit of the assistant's turn.
// Audio is the base64 of the synthesized asset; LipSync is the viseme
// document exactly as the extractor produced it.
type ReplySegment struct {
	Text             string           `json:"text"`
	FacialExpression FacialExpression `json:"facialExpression"`
	Animation        Animation        `json:"animation"`
	Audio            string           `json:"audio,omitempty"`
	LipSync          json.RawMessage  `json:"lipsync,omitempty"`
}

// MouthCue is one timed viseme in a lip-sync document
type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value string  `json:"value"`
}

// LipSyncDocument is the shape the viseme extractor writes
type LipSyncDocument struct {
	Metadata  map[string]any `json:"metadata,omitempty"`
	MouthCues []MouthCue     `json:"mouthCues"`
}

// ChatRequest is the body of POST /chat and of websocket chat frames
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse wraps the ordered reply segments
type ChatResponse struct {
	Messages []ReplySegment `json:"messages"`
}

// VoiceChatResponse adds the transcript the voice upload produced
type VoiceChatResponse struct {
	Transcript string         `json:"transcript"`
	Messages   []ReplySegment `json:"messages"`
}
