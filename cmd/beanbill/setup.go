package main

import (
	"fmt"
	"os"

	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/beanbill/pkg/client"
)

// runSetup runs the OAuth flow for the Google Sheets export.
func runSetup(args []string) error {
	fs, cf := newFlagSet("setup")
	force := fs.Bool("force", false, "re-authenticate even if a token exists")
	_ = fs.Parse(args)

	cfg, logger, logCloser, err := loadConfig(cf.configPath)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	s := cfg.Export.Sheets
	auth := client.New(client.Config{SecretsFile: s.SecretsFile, TokenFile: s.TokenFile}, logger)

	fmt.Println("=== beanbill setup ===")
	fmt.Println()

	if _, err := os.Stat(auth.SecretsFile()); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", auth.SecretsFile(), auth.SecretsFile())
	}

	if !*force {
		if _, err := os.Stat(auth.TokenFile()); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", auth.TokenFile())
			fmt.Println()
			fmt.Println("To re-authenticate, run: beanbill setup -force")
			return nil
		}
	} else {
		if err := os.Remove(auth.TokenFile()); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Println("Forcing re-authentication...")
		fmt.Println()
	}

	fmt.Println("This authorizes beanbill to append imported entries to a Google Sheet.")
	fmt.Println("Required permission: Sheets (read and write spreadsheets)")
	fmt.Println()

	ctx, cancel := signalContext(logger, nil)
	defer cancel()

	if _, err := auth.Authorize(ctx, sheets.SpreadsheetsScope); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Printf("Token saved to: %s\n", auth.TokenFile())
	if s.Name == "" {
		fmt.Println()
		fmt.Println("Set export.sheets.name in the config to enable the Sheets export.")
	}
	return nil
}
