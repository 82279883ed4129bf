package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/internal/crypto"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect and export key material",
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted key derivation record",
	Long: `The record holds the KDF construct, cost parameters and salts, never
key material. With the record and the password, the same keys are
always regenerated.`,
	RunE: runKeysShow,
}

var keysWrapCmd = &cobra.Command{
	Use:   "wrap <recipient-public-key>",
	Short: "Encrypt the symmetric keys to an RSA recipient",
	Long: `Wrap derives the symmetric keys from the password and encrypts them
to the recipient's RSA public key (authorized_keys format) with
OAEP/SHA-256. The output can be stored or sent without exposing the
password; the recipient recovers a working cipher with their private
key.`,
	Example: `  coldvault keys wrap ~/.ssh/id_rsa.pub --out wrapped_keys.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runKeysWrap,
}

var (
	keysWrapPassword string
	keysWrapOut      string
)

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysShowCmd)
	keysCmd.AddCommand(keysWrapCmd)

	keysWrapCmd.Flags().StringVarP(&keysWrapPassword, "password", "p", "",
		"Encryption password (will prompt if not provided)")
	keysWrapCmd.Flags().StringVarP(&keysWrapOut, "out", "o", "",
		"Write wrapped keys to file instead of stdout")
}

func runKeysShow(cmd *cobra.Command, args []string) error {
	params, err := crypto.LoadParams(cfg.Storage.KeyParams)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(params)
		return nil
	}

	printInfo("Construct:   %s", params.Construct)
	printInfo("Cost:        ops=%d mem=%d KiB", params.Ops, params.Mem)
	printInfo("Signing:     %v", params.SigningEnabled())
	printInfo("Record path: %s", cfg.Storage.KeyParams)
	return nil
}

func runKeysWrap(cmd *cobra.Command, args []string) error {
	pubData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read recipient key: %w", err)
	}

	pub, err := crypto.ParsePublicKey(pubData)
	if err != nil {
		return err
	}

	cipher, err := resolveCipher(keysWrapPassword, false)
	if err != nil {
		return err
	}

	wrapped, err := cipher.WrapKeys(pub)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(wrapped, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wrapped keys: %w", err)
	}

	if keysWrapOut != "" {
		if err := os.WriteFile(keysWrapOut, data, 0600); err != nil {
			return fmt.Errorf("write wrapped keys: %w", err)
		}
		printSuccess("Wrapped keys written to %s", keysWrapOut)
		return nil
	}

	fmt.Println(string(data))
	return nil
}
