package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"talking-avatar/backend/internal/models"
)

// MaxSegments is the most segments one reply may carry; extra ones are dropped
const MaxSegments = 3

// replyShape is how the model wrapped its segment list
type replyShape int

const (
	shapeArray replyShape = iota
	shapeMessagesKey
	shapeSingleProperty
)

func (s replyShape) String() string {
	switch s {
	case shapeArray:
		return "array"
	case shapeMessagesKey:
		return "messages"
	default:
		return "single-property"
	}
}

type rawSegment struct {
	Text             string `json:"text"`
	FacialExpression string `json:"facialExpression"`
	Animation        string `json:"animation"`
}

// decoded is the normalized model reply
type decoded struct {
	segments  []models.ReplySegment
	shape     replyShape
	property  string
	truncated int
}

// decodeReply accepts a bare JSON array, an object with a "messages" array, or
// an object whose only array-valued property holds the segments.
func decodeReply(content string) (*decoded, error) {
	data := bytes.TrimSpace([]byte(content))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedReply)
	}

	out := &decoded{}
	var list json.RawMessage

	switch data[0] {
	case '[':
		out.shape = shapeArray
		list = data
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		if messages, ok := obj["messages"]; ok {
			out.shape = shapeMessagesKey
			list = messages
			break
		}
		key, ok := singleArrayProperty(obj)
		if !ok {
			return nil, fmt.Errorf("%w: no segment list in object", ErrMalformedReply)
		}
		out.shape = shapeSingleProperty
		out.property = key
		list = obj[key]
	default:
		return nil, fmt.Errorf("%w: not a JSON array or object", ErrMalformedReply)
	}

	list = bytes.TrimSpace(list)
	if len(list) == 0 || list[0] != '[' {
		return nil, fmt.Errorf("%w: segment list is not an array", ErrMalformedReply)
	}

	var raw []rawSegment
	if err := json.Unmarshal(list, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if len(raw) > MaxSegments {
		out.truncated = len(raw) - MaxSegments
		raw = raw[:MaxSegments]
	}

	out.segments = make([]models.ReplySegment, 0, len(raw))
	for i, r := range raw {
		if r.Text == "" {
			return nil, fmt.Errorf("%w: segment %d has no text", ErrMalformedReply, i)
		}
		out.segments = append(out.segments, normalize(r))
	}
	return out, nil
}

func singleArrayProperty(obj map[string]json.RawMessage) (string, bool) {
	var keys []string
	for k, v := range obj {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] == '[' {
			keys = append(keys, k)
		}
	}
	if len(keys) != 1 {
		return "", false
	}
	return keys[0], true
}

// normalize maps tags outside the closed sets onto the neutral defaults
func normalize(r rawSegment) models.ReplySegment {
	seg := models.ReplySegment{
		Text:             r.Text,
		FacialExpression: models.FacialExpression(r.FacialExpression),
		Animation:        models.Animation(r.Animation),
	}
	if !seg.FacialExpression.Valid() {
		seg.FacialExpression = models.ExpressionDefault
	}
	if !seg.Animation.Valid() {
		seg.Animation = models.AnimationIdle
	}
	return seg
}
