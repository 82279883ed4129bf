package main

import (
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <project> <file-name>",
	Short: "Audit a catalogued file's chunk partition",
	Long: `Verify checks that the chunks recorded for a file are contiguous
and cover it exactly, with no gap or overlap. It reads only the local
catalog; nothing is downloaded.`,
	Example: `  coldvault verify photos archive.tar`,
	Args:    cobra.ExactArgs(2),
	RunE:    runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	project, fileName := args[0], args[1]

	err := vaultClient.Backup.Verify(project, fileName)
	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"project": project,
				"file":    fileName,
				"error":   err.Error(),
			})
		} else {
			printError("Verification failed: %v", err)
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": true,
			"project": project,
			"file":    fileName,
		})
		return nil
	}

	printSuccess("Chunk partition for %s/%s is complete", project, fileName)
	return nil
}
