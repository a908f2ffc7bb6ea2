package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"dag-ledger/signer"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "generate a signer seed for signer.seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := signer.New()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed:     %s\nidentity: %s\n", s.SeedHex(), hex.EncodeToString(s.Identity()))
			return nil
		},
	}
}
