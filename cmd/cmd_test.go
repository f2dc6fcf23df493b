package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dnsreflect/internal/core"
)

// MockClient implements ClientInterface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Stop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Reload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestRunReload_TableDriven(t *testing.T) {
	tests := []struct {
		name           string
		mockError      error
		expectedOutput string
	}{
		{name: "reloaded", expectedOutput: "✓ Configuration reloaded successfully"},
		{name: "daemon not running", mockError: errors.New("daemon not running")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := new(MockClient)
			mockClient.On("Reload", mock.Anything).Return(tt.mockError)

			var buf bytes.Buffer
			err := runReload(context.Background(), mockClient, &buf)

			if tt.mockError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "failed to reload")
				assert.Contains(t, err.Error(), tt.mockError.Error())
				assert.Empty(t, buf.String())
			} else {
				assert.NoError(t, err)
				assert.Contains(t, buf.String(), tt.expectedOutput)
			}
			mockClient.AssertExpectations(t)
		})
	}
}

func TestRunStop(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Stop", mock.Anything).Return(nil).Once()
	mockClient.On("Stop", mock.Anything).Return(errors.New("timeout")).Once()

	var buf bytes.Buffer
	require.NoError(t, runStop(context.Background(), mockClient, &buf))
	assert.Contains(t, buf.String(), "✓ Daemon stopped")

	err := runStop(context.Background(), mockClient, &buf)
	assert.ErrorContains(t, err, "failed to stop: timeout")
	mockClient.AssertExpectations(t)
}

func TestReloadCmd_Execute(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Reload", mock.Anything).Return(nil)

	originalCli := cli
	SetClient(mockClient)
	defer SetClient(originalCli)

	root := &cobra.Command{Use: "dnsreflect"}
	root.AddCommand(reloadCmd)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"reload"})

	assert.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "✓ Configuration reloaded successfully")
	mockClient.AssertExpectations(t)
}

func TestSignalClient_PIDFile(t *testing.T) {
	dir := t.TempDir()

	c := &signalClient{pidFile: filepath.Join(dir, "absent.pid")}
	assert.ErrorContains(t, c.Reload(context.Background()), "daemon not running")

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("not-a-pid\n"), 0o644))
	c = &signalClient{pidFile: bad}
	assert.ErrorContains(t, c.Stop(context.Background()), "invalid pid file")
}

func TestGetClient_DefaultsToSignalClient(t *testing.T) {
	originalCli := cli
	SetClient(nil)
	defer SetClient(originalCli)

	_, ok := GetClient().(*signalClient)
	assert.True(t, ok)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, runValidate("", &buf))
		assert.Equal(t, "VALID: interface \"eth0\", 1 worker(s), 1 blocked address(es), 1 blocked port(s)\n", buf.String())
	})

	t.Run("seed file is merged", func(t *testing.T) {
		seeds := filepath.Join(t.TempDir(), "seeds.yml")
		require.NoError(t, os.WriteFile(seeds, []byte("addresses: [\"9.9.9.9\", \"1.1.1.1\"]\n"), 0o644))
		path := writeConfig(t, "dnsreflect:\n  interface: eth1\n  workers: 2\n  blocklist:\n    file: "+seeds+"\n")

		var buf bytes.Buffer
		require.NoError(t, runValidate(path, &buf))
		assert.Contains(t, buf.String(), `interface "eth1", 2 worker(s), 2 blocked address(es)`)
	})

	t.Run("invalid config", func(t *testing.T) {
		path := writeConfig(t, "dnsreflect:\n  workers: 0\n")
		err := runValidate(path, &bytes.Buffer{})
		assert.ErrorIs(t, err, core.ErrConfigInvalid)
	})

	t.Run("bad seed file", func(t *testing.T) {
		seeds := filepath.Join(t.TempDir(), "seeds.yml")
		require.NoError(t, os.WriteFile(seeds, []byte("addresses: [\"::1\"]\n"), 0o644))
		path := writeConfig(t, "dnsreflect:\n  blocklist:\n    file: "+seeds+"\n")
		err := runValidate(path, &bytes.Buffer{})
		assert.ErrorIs(t, err, core.ErrConfigInvalid)
	})
}

func TestRunBlocklist(t *testing.T) {
	path := writeConfig(t, "dnsreflect:\n  blocklist:\n    capacity: 8\n    addresses: [\"9.9.9.9\", \"1.1.1.1\"]\n    ports: [5353, 53]\n")

	var buf bytes.Buffer
	require.NoError(t, runBlocklist(path, &buf))

	var view blocklistView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &view))
	assert.Equal(t, []string{"1.1.1.1", "9.9.9.9"}, view.Addresses)
	assert.Equal(t, []uint16{53, 5353}, view.Ports)
	assert.Equal(t, 8, view.Capacity)
}

func TestRunReplay_MissingInput(t *testing.T) {
	err := runReplay(context.Background(), "", filepath.Join(t.TempDir(), "absent.pcap"), "", &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrControlPlane)
}
