package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/yt-front/internal"
	"github.com/dgellow/yt-front/internal/config"
	"github.com/dgellow/yt-front/internal/idp"
	"github.com/dgellow/yt-front/internal/log"
)

var BuildVersion = "dev"

func defaultConfig() map[string]any {
	return map[string]any{
		"version": config.VersionPrefix,
		"proxy": map[string]any{
			"baseURL":        "https://yt.yourcompany.com",
			"addr":           ":8080",
			"name":           config.DefaultName,
			"clientURL":      "https://app.yourcompany.com",
			"allowedOrigins": []string{"https://app.yourcompany.com"},
		},
		"auth": map[string]any{
			"googleClientId":     map[string]string{"$env": "GOOGLE_CLIENT_ID"},
			"googleClientSecret": map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
			"googleRedirectUri":  "https://yt.yourcompany.com" + config.CallbackPath,
			"scopes":             idp.DefaultScopes,
			"refreshSkew":        config.DefaultRefreshSkew.String(),
			"providerTimeout":    config.DefaultProviderTimeout.String(),
			"sessionSecret":      map[string]string{"$env": "SESSION_SECRET"},
			"encryptionKey":      map[string]string{"$env": "ENCRYPTION_KEY"},
		},
		"storage": map[string]any{
			"kind": string(config.StorageKindMemory),
		},
		"sessions": map[string]any{
			"kind": string(config.SessionsKindMemory),
			"ttl":  config.DefaultSessionTTL.String(),
		},
	}
}

func generateDefaultConfig(path string) error {
	data, err := json.MarshalIndent(defaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func printIssues(title string, issues []config.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(issues))
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Printf("  - %s\n", issue.Message)
		}
	}
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)
	printIssues("Errors", result.Errors)
	printIssues("Warnings", result.Warnings)

	fmt.Println()
	switch {
	case len(result.Errors) > 0:
		fmt.Println("Result: FAIL")
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	case len(result.Warnings) > 0:
		// Warnings don't block startup
		fmt.Println("Result: PASS (with warnings)")
	default:
		fmt.Println("Result: PASS")
	}
	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting yt-front", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	app, err := internal.New(context.Background(), cfg)
	if err != nil {
		log.LogError("Failed to create YouTube proxy: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Server stopped with error: %v", err)
		os.Exit(1)
	}
}
