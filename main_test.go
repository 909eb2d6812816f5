package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunReturnsErrorWithoutRedis(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	root := t.TempDir()
	t.Setenv("SHIKKHA_REDIS_ADDR", addr)

	err = run(context.Background(), root)
	require.Error(t, err)
	require.Contains(t, err.Error(), addr)
	require.DirExists(t, filepath.Join(root, "logs"))
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("SHIKKHA_BACKEND_BASE_URL", "ftp://nope")

	err := run(context.Background(), t.TempDir())
	require.Error(t, err)
}
