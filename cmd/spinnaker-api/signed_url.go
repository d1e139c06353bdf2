package main

import (
	"fmt"

	"github.com/bd2kgenomics/spinnaker/internal/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var signedURLCmd = &cobra.Command{
	Use:   "signed-url <object-id>",
	Short: "Print the signed download url of a storage object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, undo := setup()
		defer undo()

		storageCfg := cfg.Service.Storage
		if storageCfg.URL == "" {
			return fmt.Errorf("SPINNAKER_STORAGE_URL is not set")
		}

		c := client.NewStorageClient(storageCfg.URL, storageCfg.AccessKey, storageCfg.Timeout)
		signedURL, err := c.ResolveSignedURL(cmd.Context(), args[0])
		if err != nil {
			zap.S().Errorw("failed to resolve signed url", "object_id", args[0], "error", err)
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), signedURL)
		return err
	},
}
