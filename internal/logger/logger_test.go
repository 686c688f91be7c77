package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, INFO, ParseLevel("chatty"))
}

func TestComponentLoggerFollowsInit(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer Init(INFO)

	log := WithComponent("server")

	Init(WARN)
	log.Info("dropped")
	assert.Zero(t, buf.Len())

	Init(DEBUG)
	log.Debug("accepted", "remote", "127.0.0.1:5000", "err", errors.New("eof"))

	line := strings.TrimSpace(buf.String())
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(line), &e))
	assert.Equal(t, "debug", e.Level)
	assert.Equal(t, "server", e.Component)
	assert.Equal(t, "accepted", e.Message)
	assert.Equal(t, "127.0.0.1:5000", e.Fields["remote"])
	assert.Equal(t, "eof", e.Fields["err"])
}

func TestKVToMapOddArgs(t *testing.T) {
	m := kvToMap([]interface{}{"a", 1, 2, "b", "dangling"})
	assert.Equal(t, map[string]interface{}{"a": 1, "2": "b"}, m)
	assert.Nil(t, kvToMap(nil))
}
