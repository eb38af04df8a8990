package advisory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorderKeepsNewest(t *testing.T) {
	r := NewRecorder(3)
	for i := 0; i < 5; i++ {
		r.Notify(Info(fmt.Sprintf("msg-%d", i)))
	}

	assert.Equal(t, []string{"msg-2", "msg-3", "msg-4"}, r.Messages())
	assert.Len(t, r.List(), 3)
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewRecorder(10), NewRecorder(10)
	Multi{a, nil, b}.Notify(Warning("Please set your GitLab Access Token", ActionSetToken))

	require.Len(t, a.List(), 1)
	require.Len(t, b.List(), 1)
	assert.Equal(t, []string{ActionSetToken}, b.List()[0].Actions)
	assert.Equal(t, LevelWarning, a.List()[0].Level)
}

func TestLogNotifierLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := Log{Logger: zap.New(core)}

	n.Notify(Info("ok"))
	n.Notify(Warning("careful"))
	n.Notify(Error("Failed to install the extension."))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}
