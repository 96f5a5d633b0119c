package integration

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

const binaryPath = "../cmd/yt-front/yt-front"

// TestMain builds the binary once and starts the fake Google and YouTube
// servers shared by every test in the package
func TestMain(m *testing.M) {
	flag.Parse()

	fmt.Println("Building yt-front binary...")
	buildCmd := exec.Command("go", "build", "-o", binaryPath, "../cmd/yt-front")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		fmt.Printf("Failed to build yt-front: %v\n", err)
		os.Exit(1)
	}

	logFile := "yt-front-test.log"
	os.Setenv("YT_FRONT_TEST_LOG", logFile)

	var exitCode int
	defer func() {
		if exitCode != 0 {
			showTestFailureDiagnostics(logFile)
		}
		os.Exit(exitCode)
	}()

	fakeGoogle := NewFakeGoogleServer(fakeGooglePort)
	if err := fakeGoogle.Start(); err != nil {
		fmt.Printf("Failed to start fake Google server: %v\n", err)
		exitCode = 1
		return
	}
	defer func() { _ = fakeGoogle.Stop() }()

	fakeYouTube := NewFakeYouTubeServer(fakeYouTubePort)
	if err := fakeYouTube.Start(); err != nil {
		fmt.Printf("Failed to start fake YouTube server: %v\n", err)
		exitCode = 1
		return
	}
	defer func() { _ = fakeYouTube.Stop() }()

	exitCode = m.Run()
}

// showTestFailureDiagnostics prints the tail of the server log
func showTestFailureDiagnostics(logFile string) {
	fmt.Println("\n========== TEST FAILURE DIAGNOSTICS ==========")

	if _, err := os.Stat(logFile); err == nil {
		fmt.Println("\nyt-front logs (last 50 lines):")
		fmt.Println("----------------------------------------------")
		tailCmd := exec.Command("tail", "-50", logFile)
		tailCmd.Stdout = os.Stdout
		tailCmd.Stderr = os.Stderr
		_ = tailCmd.Run()
	}

	fmt.Println("\n==============================================")
}
