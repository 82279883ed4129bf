package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/internal/crypto"
)

var backupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Encrypt and upload a file to the vault",
	Long: `Backup splits the file into fixed-size parts, encrypts each part
independently, and uploads them as a resumable multipart session. If
the upload fails partway, a session snapshot is kept; finish it later
with "coldvault resume".`,
	Example: `  coldvault backup /data/archive.tar --project photos
  coldvault backup /data/archive.tar --project photos --plaintext`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

var (
	backupProject   string
	backupPassword  string
	backupPlaintext bool
)

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().StringVarP(&backupProject, "project", "P", "default",
		"Project name the file is catalogued under")
	backupCmd.Flags().StringVarP(&backupPassword, "password", "p", "",
		"Encryption password (will prompt if not provided)")
	backupCmd.Flags().BoolVar(&backupPlaintext, "plaintext", false,
		"Upload without encryption")
}

func runBackup(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	cipher, err := resolveCipher(backupPassword, backupPlaintext)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	startTime := time.Now()
	sess, err := vaultClient.Backup.Backup(ctx, backupProject, filePath, cipher)
	duration := time.Since(startTime)

	if err != nil {
		if jsonOutput {
			result := map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			}
			if sess != nil {
				result["session_id"] = sess.ID
			}
			printJSON(result)
		} else {
			printError("Backup failed: %v", err)
			if sess != nil {
				printWarning("Resume with: coldvault resume %s", sess.ID)
			}
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":    true,
			"archive_id": sess.ArchiveID,
			"session_id": sess.ID,
			"parts":      len(sess.Chunks),
			"bytes_sent": sess.TransferSize(),
		})
		return nil
	}

	printInfo("Uploaded %s in %d parts (%s)",
		formatBytes(sess.TransferSize()), len(sess.Chunks), duration.Round(time.Second))
	printSuccess("Archive stored: %s", sess.ArchiveID)
	return nil
}

// resolveCipher prepares the cipher for an upload, prompting for the
// password when needed.
func resolveCipher(password string, plaintext bool) (*crypto.StreamCipher, error) {
	if plaintext {
		return nil, nil
	}

	if password == "" {
		var err error
		password, err = promptPassword("Encryption password: ")
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
	}

	if !jsonOutput {
		printInfo("Deriving keys (this takes a moment)...")
	}
	return vaultClient.Backup.PrepareKeys([]byte(password))
}

// signalContext cancels on interrupt so a half-finished pass still
// snapshots cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		printWarning("\nInterrupted, cancelling...")
		cancel()
	}()

	return ctx, cancel
}
