package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"

	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/pkg/logger"
)

type cannedLine struct {
	asset      string
	text       string
	expression models.FacialExpression
	animation  models.Animation
}

var introLines = []cannedLine{
	{"intro_0", "Hey dear... How was your day?", models.ExpressionSmile, models.AnimationTalking1},
	{"intro_1", "I missed you so much... Please don't go for so long!", models.ExpressionSad, models.AnimationCrying},
}

var missingKeyLines = []cannedLine{
	{"api_0", "Please my dear, don't forget to add your API keys!", models.ExpressionAngry, models.AnimationAngry},
	{"api_1", "You don't want to ruin Wawa Sensei with a crazy ChatGPT and ElevenLabs bill, right?", models.ExpressionSmile, models.AnimationLaughing},
}

// CannedReplies are the prerecorded segment sets served without calling any provider
type CannedReplies struct {
	intro       []models.ReplySegment
	missingKeys []models.ReplySegment
}

// LoadCannedReplies reads <name>.wav and <name>.json for every canned line from dir.
// A missing or unreadable asset is logged and the segment goes out without it.
func LoadCannedReplies(dir string, log *logger.Logger) *CannedReplies {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &CannedReplies{
		intro:       loadLines(dir, introLines, log),
		missingKeys: loadLines(dir, missingKeyLines, log),
	}
}

// Intro is the greeting for an empty utterance
func (c *CannedReplies) Intro() []models.ReplySegment {
	return cloneSegments(c.intro)
}

// MissingKeys is the reply used while provider credentials are not configured
func (c *CannedReplies) MissingKeys() []models.ReplySegment {
	return cloneSegments(c.missingKeys)
}

func loadLines(dir string, lines []cannedLine, log *logger.Logger) []models.ReplySegment {
	out := make([]models.ReplySegment, 0, len(lines))
	for _, line := range lines {
		seg := models.ReplySegment{
			Text:             line.text,
			FacialExpression: line.expression,
			Animation:        line.animation,
		}

		audio, err := os.ReadFile(filepath.Join(dir, line.asset+".wav"))
		if err != nil {
			log.Warn("canned audio unavailable", "asset", line.asset, "error", err.Error())
		} else {
			seg.Audio = base64.StdEncoding.EncodeToString(audio)
		}

		lipsync, err := os.ReadFile(filepath.Join(dir, line.asset+".json"))
		switch {
		case err != nil:
			log.Warn("canned lipsync unavailable", "asset", line.asset, "error", err.Error())
		case !json.Valid(lipsync):
			log.Warn("canned lipsync is not JSON", "asset", line.asset)
		default:
			seg.LipSync = json.RawMessage(lipsync)
		}

		out = append(out, seg)
	}
	return out
}

func cloneSegments(in []models.ReplySegment) []models.ReplySegment {
	out := make([]models.ReplySegment, len(in))
	copy(out, in)
	return out
}
