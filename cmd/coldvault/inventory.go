package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Manage vault inventory jobs",
	Long: `Cold storage prepares inventories asynchronously: request a job,
wait for the backend to finish it (typically hours), then fetch the
output. Requested jobs are logged locally so a later fetch finds them.`,
}

var inventoryRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request a new inventory job",
	RunE:  runInventoryRequest,
}

var inventoryFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the output of a finished inventory job",
	RunE:  runInventoryFetch,
}

var inventoryOutput string

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.AddCommand(inventoryRequestCmd)
	inventoryCmd.AddCommand(inventoryFetchCmd)

	inventoryFetchCmd.Flags().StringVarP(&inventoryOutput, "output", "o", "",
		"Write inventory body to file instead of stdout")
}

func runInventoryRequest(cmd *cobra.Command, args []string) error {
	req, err := vaultClient.Inventory.Request(context.Background(), cfg.Vault.Name)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(req)
		return nil
	}

	printSuccess("Inventory job requested: %s", req.JobID)
	printInfo("Fetch the output later with: coldvault inventory fetch")
	return nil
}

func runInventoryFetch(cmd *cobra.Command, args []string) error {
	out, req, err := vaultClient.Inventory.Fetch(context.Background(), cfg.Vault.Name)
	if err != nil {
		return err
	}

	if out == nil {
		if jsonOutput {
			printJSON(map[string]interface{}{"ready": false})
			return nil
		}
		printWarning("No finished inventory job yet; try again later.")
		return nil
	}

	if inventoryOutput != "" {
		if err := os.WriteFile(inventoryOutput, out.Body, 0600); err != nil {
			return fmt.Errorf("write inventory output: %w", err)
		}
		if !jsonOutput {
			printSuccess("Inventory for job %s written to %s", req.JobID, inventoryOutput)
		}
		return nil
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"ready":        true,
			"job_id":       req.JobID,
			"content_type": out.ContentType,
			"body":         string(out.Body),
		})
		return nil
	}

	fmt.Println(string(out.Body))
	return nil
}
