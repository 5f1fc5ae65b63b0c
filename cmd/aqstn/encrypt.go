package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"aqstn/internal/config"
)

// encryptionKeyName is AQSTN_ENCRYPTION_KEY without the prefix.
var encryptionKeyName = strings.TrimPrefix(config.EncryptionKeyEnv, config.EnvPrefix)

var encryptCmd = &cobra.Command{
	Use:   "encrypt VALUE",
	Short: "print VALUE as an ENC: secret for AQSTN_ variables",
	Long: fmt.Sprintf(`Encrypts VALUE with the key derived from %s.
The output can be used for secret settings such as AQSTN_REDIS_PASSWORD.`, config.EncryptionKeyEnv),
	Args: cobra.ExactArgs(1),
	RunE: runEncrypt,
}

func init() {
	rootCmd.AddCommand(encryptCmd)
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFile(envPath); err != nil {
		return err
	}
	em, err := config.NewEnvManager("", config.EnvPrefix)
	if err != nil {
		return err
	}
	if err := em.ValidateRequired([]string{encryptionKeyName}); err != nil {
		return err
	}
	encrypted, err := em.Encrypt(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), encrypted)
	return nil
}
