package pipeline

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCannedAssets(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{"intro_0", "intro_1", "api_0", "api_1"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".wav"), []byte("RIFF-"+name), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(`{"mouthCues":[{"start":0,"end":0.1,"value":"X"}]}`), 0o600))
	}
}

func TestCannedRepliesLoadAssets(t *testing.T) {
	dir := t.TempDir()
	writeCannedAssets(t, dir)

	canned := LoadCannedReplies(dir, logger.Discard())
	intro := canned.Intro()

	require.Len(t, intro, 2)
	assert.Equal(t, "Hey dear... How was your day?", intro[0].Text)
	assert.Equal(t, models.ExpressionSmile, intro[0].FacialExpression)
	assert.Equal(t, models.AnimationTalking1, intro[0].Animation)
	assert.Equal(t, models.AnimationCrying, intro[1].Animation)

	audio, err := base64.StdEncoding.DecodeString(intro[0].Audio)
	require.NoError(t, err)
	assert.Equal(t, "RIFF-intro_0", string(audio))
	assert.JSONEq(t, `{"mouthCues":[{"start":0,"end":0.1,"value":"X"}]}`, string(intro[0].LipSync))

	missing := canned.MissingKeys()
	require.Len(t, missing, 2)
	assert.Equal(t, models.AnimationAngry, missing[0].Animation)
	assert.Equal(t, models.AnimationLaughing, missing[1].Animation)
}

func TestCannedRepliesWithoutAssets(t *testing.T) {
	canned := LoadCannedReplies(t.TempDir(), logger.Discard())

	for _, seg := range canned.MissingKeys() {
		assert.NotEmpty(t, seg.Text)
		assert.Empty(t, seg.Audio)
		assert.Nil(t, seg.LipSync)
	}
}

func TestCannedRepliesAreCopies(t *testing.T) {
	canned := LoadCannedReplies(t.TempDir(), logger.Discard())

	first := canned.Intro()
	first[0].Text = "changed"
	assert.Equal(t, "Hey dear... How was your day?", canned.Intro()[0].Text)
}
