package integration

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	proxyURL  = "http://localhost:8080"
	clientURL = "http://localhost:" + fakeGooglePort + "/app"
)

// testEnv is the environment every yt-front process gets: secrets for the
// $env references in the config and endpoint overrides for the fakes
func testEnv() []string {
	return []string{
		"YT_FRONT_ENV=development",
		"GOOGLE_CLIENT_ID=integration-client",
		"GOOGLE_CLIENT_SECRET=integration-secret",
		"SESSION_SECRET=integration-session-secret-0123456789",
		"ENCRYPTION_KEY=integration-encryption-key-0123456789",
		"GOOGLE_OAUTH_AUTH_URL=http://localhost:" + fakeGooglePort + "/auth",
		"GOOGLE_OAUTH_TOKEN_URL=http://localhost:" + fakeGooglePort + "/token",
		"GOOGLE_USERINFO_URL=http://localhost:" + fakeGooglePort + "/userinfo",
		"YOUTUBE_API_URL=http://localhost:" + fakeYouTubePort + "/youtube/v3/",
	}
}

// writeTestConfig writes a memory-backed config and returns its path
func writeTestConfig(t *testing.T) string {
	t.Helper()

	cfg := map[string]any{
		"version": "v0.0.1-DEV_EDITION",
		"proxy": map[string]any{
			"baseURL":        proxyURL,
			"addr":           ":8080",
			"clientURL":      clientURL,
			"allowedOrigins": []string{"http://localhost:" + fakeGooglePort},
		},
		"auth": map[string]any{
			"googleClientId":     map[string]string{"$env": "GOOGLE_CLIENT_ID"},
			"googleClientSecret": map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
			"sessionSecret":      map[string]string{"$env": "SESSION_SECRET"},
		},
		"storage":  map[string]any{"kind": "memory"},
		"sessions": map[string]any{"kind": "memory", "ttl": "2h"},
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// startYTFront runs the binary with configPath and stops it when the test ends
func startYTFront(t *testing.T, configPath string, extraEnv ...string) {
	t.Helper()

	cmd := exec.Command(binaryPath, "-config", configPath)
	cmd.Env = append(os.Environ(), testEnv()...)
	cmd.Env = append(cmd.Env, extraEnv...)

	if logFile := os.Getenv("YT_FRONT_TEST_LOG"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			cmd.Stderr = f
			cmd.Stdout = f
			t.Cleanup(func() { f.Close() })
		}
	}

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start yt-front: %v", err)
	}
	t.Cleanup(func() {
		stopYTFront(cmd)
	})

	waitForYTFront(t)
}

// stopYTFront stops the yt-front server gracefully
func stopYTFront(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}

// waitForYTFront waits for the health endpoint to answer
func waitForYTFront(t *testing.T) {
	t.Helper()
	for range 20 {
		resp, err := http.Get(proxyURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatal("yt-front failed to become ready after 5 seconds")
}

// newBrowser returns a client that keeps cookies and follows redirects,
// like the frontend's browser would
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func getJSON(t *testing.T, client *http.Client, url string, v any) int {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}
