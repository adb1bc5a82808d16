package logger

import (
	"errors"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type captureSender struct {
	channel string
	got     []string
}

func (c *captureSender) SendText(channelID, content string) error {
	c.channel = channelID
	c.got = append(c.got, content)
	return nil
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	l, err := New(path)
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"msg":"hello"`))
}

func TestNotifyOnPanic(t *testing.T) {
	s := &captureSender{}
	InitNotifier(s, "log-channel")

	func() {
		defer NotifyOnPanic("handler")
		panic(errors.New("boom"))
	}()

	require.Equal(t, "log-channel", s.channel)
	require.Equal(t, []string{"[ALERT] Panic in handler: boom"}, s.got)
}
