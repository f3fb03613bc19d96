package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
)

// setupEnv points HOME and the database at a temp dir and clears planner
// credentials.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:"+filepath.Join(dir, "questd.db"))
	t.Setenv("PLANNER_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("LOGGING_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestMigrateCommand(t *testing.T) {
	setupEnv(t)

	for i := 0; i < 2; i++ {
		out, err := execute(t, "migrate")
		require.NoError(t, err)
		assert.Contains(t, out, "Schema is up to date (sqlite)")
	}
}

func TestPlanCommand_Misconfigured(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "plan", "Prepare", "a", "science", "fair", "volcano")
	assert.ErrorIs(t, err, apiv1.ErrServiceMisconfigured)
}

func TestPlanCommand_CommitFlags(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "plan", "--commit", "Prepare a science fair volcano")
	assert.ErrorContains(t, err, "--commit needs --creator and --name")
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServe_HealthAndShutdown(t *testing.T) {
	setupEnv(t)
	port := freePort(t)
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_HTTP_PORT", strconv.Itoa(port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, "") }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("SERVER_HTTP_PORT", "70000")

	err := runServe(context.Background(), "")
	assert.ErrorContains(t, err, "invalid server port")
}
