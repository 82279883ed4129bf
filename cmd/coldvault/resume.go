package main

import (
	"time"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume an interrupted upload session",
	Long: `Resume reloads a persisted session snapshot and uploads only the
parts that never completed. Run without arguments to list resumable
sessions.`,
	Example: `  coldvault resume
  coldvault resume 2f1c9a3e-8b4d-4f1a-9c2e-7d5b6a8e0f13`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

var (
	resumePassword  string
	resumePlaintext bool
)

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().StringVarP(&resumePassword, "password", "p", "",
		"Encryption password (will prompt if not provided)")
	resumeCmd.Flags().BoolVar(&resumePlaintext, "plaintext", false,
		"Session was uploaded without encryption")
}

func runResume(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listSessions()
	}
	sessionID := args[0]

	cipher, err := resolveCipher(resumePassword, resumePlaintext)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	startTime := time.Now()
	sess, err := vaultClient.Backup.Resume(ctx, sessionID, cipher)
	duration := time.Since(startTime)

	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success":    false,
				"session_id": sessionID,
				"error":      err.Error(),
			})
		} else {
			printError("Resume failed: %v", err)
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":    true,
			"archive_id": sess.ArchiveID,
			"session_id": sess.ID,
		})
		return nil
	}

	printInfo("Finished %s in %s", sess.FilePath, duration.Round(time.Second))
	printSuccess("Archive stored: %s", sess.ArchiveID)
	return nil
}

func listSessions() error {
	sessions, err := vaultClient.Backup.Sessions()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"sessions": sessions})
		return nil
	}

	if len(sessions) == 0 {
		printInfo("No resumable sessions.")
		return nil
	}

	printInfo("Resumable sessions:")
	for _, id := range sessions {
		printInfo("  %s", id)
	}
	return nil
}
