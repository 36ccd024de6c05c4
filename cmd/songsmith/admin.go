// Offline administration commands: transfer documents in and out without a
// running server, and the credential recovery path.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/auth"
	"github.com/quillrook/songsmith/internal/history"
	"github.com/quillrook/songsmith/internal/transfer"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a user's artist roster and generation history to JSON files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "Email of the account to export",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "artists",
				Usage: "Output path for the roster document",
				Value: "artists.json",
			},
			&cli.StringFlag{
				Name:  "history",
				Usage: "Output path for the ledger document",
				Value: "history.json",
			},
		},
		Action: runExport,
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import roster and/or history JSON documents into a user's account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "Email of the target account",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "artists",
				Usage: "Roster document to import",
			},
			&cli.StringFlag{
				Name:  "history",
				Usage: "Ledger document to import",
			},
		},
		Action: runImport,
	}
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	svc, userID, cleanup, err := offlineTransfer(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	artistsPath := cmd.String("artists")
	data, err := svc.ExportArtists(ctx, userID)
	if err != nil {
		return fmt.Errorf("exporting artists: %w", err)
	}
	if err := os.WriteFile(artistsPath, data, 0o644); err != nil { //nolint:gosec // G306: transfer documents are not secrets
		return fmt.Errorf("writing %s: %w", artistsPath, err)
	}
	fmt.Printf("wrote %s\n", artistsPath)

	historyPath := cmd.String("history")
	data, err = svc.ExportHistory(ctx, userID)
	if err != nil {
		return fmt.Errorf("exporting history: %w", err)
	}
	if err := os.WriteFile(historyPath, data, 0o644); err != nil { //nolint:gosec // G306: transfer documents are not secrets
		return fmt.Errorf("writing %s: %w", historyPath, err)
	}
	fmt.Printf("wrote %s\n", historyPath)

	return nil
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	artistsPath := cmd.String("artists")
	historyPath := cmd.String("history")
	if artistsPath == "" && historyPath == "" {
		return fmt.Errorf("nothing to import: pass --artists and/or --history")
	}

	svc, userID, cleanup, err := offlineTransfer(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if artistsPath != "" {
		data, err := os.ReadFile(artistsPath) //nolint:gosec // G304: operator-supplied path
		if err != nil {
			return fmt.Errorf("reading %s: %w", artistsPath, err)
		}
		result, err := svc.ImportArtists(ctx, userID, data)
		if err != nil {
			return fmt.Errorf("importing artists: %w", err)
		}
		fmt.Printf("artists: %d added, %d updated\n", result.Added, result.Updated)
	}

	if historyPath != "" {
		data, err := os.ReadFile(historyPath) //nolint:gosec // G304: operator-supplied path
		if err != nil {
			return fmt.Errorf("reading %s: %w", historyPath, err)
		}
		if err := svc.ImportHistory(ctx, userID, data); err != nil {
			return fmt.Errorf("importing history: %w", err)
		}
		fmt.Println("history imported")
	}

	return nil
}

// offlineTransfer opens the database and resolves the --user flag to an
// account. The cleanup closes the database.
func offlineTransfer(ctx context.Context, cmd *cli.Command) (*transfer.Service, string, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", nil, err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, "", nil, err
	}
	cleanup := func() { _ = db.Close() }

	user, err := auth.NewService(db).GetUserByEmail(ctx, cmd.String("user"))
	if err != nil {
		cleanup()
		return nil, "", nil, err
	}
	if user == nil {
		cleanup()
		return nil, "", nil, fmt.Errorf("no account with email %q", cmd.String("user"))
	}

	svc := transfer.NewService(artist.NewService(db), history.NewService(db))
	return svc, user.ID, cleanup, nil
}

// runResetCredentials wipes accounts, sessions, and stored generation keys.
// This is the recovery path for a lost encryption key.
func runResetCredentials(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if _, err := db.ExecContext(ctx, "UPDATE users SET encrypted_api_key = ''"); err != nil {
		return fmt.Errorf("clearing generation credentials: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clearing sessions: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM users"); err != nil {
		return fmt.Errorf("clearing user accounts: %w", err)
	}

	fmt.Println("Credentials reset successfully.")
	fmt.Println("All accounts, sessions, and stored generation keys have been cleared.")
	return nil
}
