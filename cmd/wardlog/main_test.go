package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/wardlog/internal/config"
	"github.com/fyrsmithlabs/wardlog/internal/dispatch"
	"github.com/fyrsmithlabs/wardlog/internal/logging"
	"github.com/fyrsmithlabs/wardlog/internal/record"
	"github.com/fyrsmithlabs/wardlog/internal/store"
	"github.com/fyrsmithlabs/wardlog/internal/store/memtable"
	"github.com/fyrsmithlabs/wardlog/internal/telemetry"
	"github.com/fyrsmithlabs/wardlog/internal/worker"
)

// execute runs the root command with args and stdin, returning stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "extract", "submit", "version"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestExtractCmd_Stdin(t *testing.T) {
	out, stderr, err := execute(t, "#HN1001\nName: Jane Doe\nAge: 34\nDx: Flu\nNotes: stable", "extract", "-")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	var rec record.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, record.Record{Code: "#HN1001", Name: "Jane Doe", Age: "34", Dx: "Flu", Notes: "stable"}, rec)
}

func TestExtractCmd_FileWithoutMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello there\nName: Bob"), 0600))

	out, stderr, err := execute(t, "", "extract", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "would be ignored")

	var rec record.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "", rec.Code)
	assert.Equal(t, "Bob", rec.Name)
}

func TestExtractCmd_EmptyInput(t *testing.T) {
	_, _, err := execute(t, "", "extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message")
}

func TestSubmit_MemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.StoreMemory

	var replies []string
	replier := dispatch.ReplierFunc(func(_ context.Context, _, text string) error {
		replies = append(replies, text)
		return nil
	})

	ack, err := submit(context.Background(), cfg, logging.NewNop(),
		dispatch.Message{ChatID: "cli", Text: "#HN1002\nName: John\nDx: Cold"}, replier)
	require.NoError(t, err)

	assert.True(t, ack.Outcome.OK)
	assert.Equal(t, []string{"#HN1002", "John", "", "Cold", ""}, ack.Record.Values())
	assert.Equal(t, []string{dispatch.DefaultSuccessReply}, replies)
}

func TestSubmit_IgnoredMessage(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.StoreMemory

	_, err := submit(context.Background(), cfg, logging.NewNop(),
		dispatch.Message{ChatID: "cli", Text: "Hello there"},
		dispatch.ReplierFunc(func(context.Context, string, string) error {
			t.Fatal("ignored message must not be answered")
			return nil
		}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message ignored")
}

func TestSubmitCmd_MemoryStore(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")

	out, _, err := execute(t, "#HN1\nName: A", "submit", "-")
	require.NoError(t, err)
	assert.Equal(t, dispatch.DefaultSuccessReply+"\n", out)
}

func TestInitLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "trace"
	logger, err := initLogger(cfg, nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(logging.TraceLevel))

	cfg.Log.Level = "loud"
	_, err = initLogger(cfg, nil)
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.StoreMemory
	cfg.Telegram.Mode = config.TelegramDisabled
	cfg.Log.Level = "error"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()
	cancel()

	require.NoError(t, <-done)
}

func TestCoreStop_BoundedWhenStoreHangs(t *testing.T) {
	logger := logging.NewTestLogger()
	client, err := store.NewClient(memtable.New(memtable.WithDelay(time.Hour)), logger.Logger)
	require.NoError(t, err)
	tel, err := telemetry.New(context.Background(), telemetry.NewDefaultConfig())
	require.NoError(t, err)

	c := &core{
		cfg:    config.Default(),
		client: client,
		pool:   worker.NewPool(1),
		tel:    tel,
		logger: logger.Logger,
	}
	d, err := c.dispatcher(dispatch.ReplierFunc(func(context.Context, string, string) error { return nil }))
	require.NoError(t, err)
	require.True(t, d.Accept(context.Background(), dispatch.Message{ChatID: "7", Text: "#HN1\nName: A"}))

	require.Eventually(t, func() bool { return c.pool.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		c.stop(ctx, []*dispatch.Dispatcher{d})
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not honor its deadline")
	}
	logger.AssertLogged(t, zapcore.WarnLevel, "messages still in flight")
	logger.AssertLogged(t, zapcore.WarnLevel, "worker pool still busy")
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
