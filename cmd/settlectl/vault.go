package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/starbridge/internal/chain"
	"github.com/josh-kwaku/starbridge/internal/domain"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Inspect custodial vaults",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "balance [chain] [token]",
		Short: "Read a vault's live token balance from chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := domain.ParseChain(args[0])
			if !ok {
				return fmt.Errorf("unknown chain %q", args[0])
			}
			t, ok := domain.ParseToken(args[1])
			if !ok {
				return fmt.Errorf("unknown token %q", args[1])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry, err := chain.NewRegistry(cfg.Chain)
			if err != nil {
				return err
			}
			vault, err := registry.VaultAddress(c)
			if err != nil {
				return err
			}

			clients := chain.NewClientPool(registry, chain.DialRPC)
			defer clients.Close()
			tokens, err := chain.NewTokenMetadata(clients, cfg.Chain.DecimalsCache, cfg.Chain.RPCTimeout)
			if err != nil {
				return err
			}

			balance, err := chain.NewBalanceOracle(registry, clients, tokens, cfg.Chain.RPCTimeout).
				Balance(cmd.Context(), c, t, vault)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]any{"chain": c, "token": t, "vault": vault, "balance": balance})
			}
			fmt.Printf("%s %s on %s (vault %s)\n", balance, t, c, vault)
			return nil
		},
	})
	return cmd
}
