package main

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysqueryd/internal/config"
	"sysqueryd/internal/errcode"
)

func TestParseArgs(t *testing.T) {
	path, port, err := parseArgs([]string{"8080"})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, 8080, port)

	path, port, err = parseArgs([]string{"--config", "/etc/sysqueryd.yaml", "9000"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/sysqueryd.yaml", path)
	assert.Equal(t, 9000, port)
}

func TestParseArgsRejects(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"80", "81"},
		{"eighty"},
		{"80x"},
		{"--bogus", "80"},
	} {
		_, _, err := parseArgs(args)
		require.Error(t, err, "args %v", args)
		assert.Equal(t, errcode.WrongParams, errcode.CodeOf(err, errcode.OK), "args %v", args)
	}

	_, _, err := parseArgs([]string{"-h"})
	assert.ErrorIs(t, err, errHelp)
}

func TestRunBindFailureIsFatal(t *testing.T) {
	busy, err := net.Listen("tcp4", ":0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := config.Default()
	cfg.History.Path = ""
	cfg.Server.ReuseAddr = false
	cfg.Server.ReusePort = false
	cfg.Server.Port = busy.Addr().(*net.TCPAddr).Port

	err = run(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, errcode.Bind, errcode.CodeOf(err, errcode.OK))
}

func TestRunServesUntilCancelled(t *testing.T) {
	probe, err := net.Listen("tcp4", ":0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	cfg := config.Default()
	cfg.Server.Port = port
	cfg.History.Path = t.TempDir() + "/history.db"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	addr := "127.0.0.1:" + strconv.Itoa(port)
	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}
