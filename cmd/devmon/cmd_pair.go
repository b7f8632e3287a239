package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPairCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "pair <addr>",
		Short: "Start a bonding attempt and wait for the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			sess, err := newSession()
			if err != nil {
				return err
			}
			dev := sess.newDevice(ctx, addr)

			runCtx, stop := context.WithCancel(context.Background())
			defer stop()
			go dev.Run(runCtx)

			if err := dev.Pair(ctx); err != nil {
				return fmt.Errorf("devmon: pair %s: %w", addr, err)
			}
			fmt.Printf("bonding started for %s\n", addr)
			for dev.Bonding.InProgress() {
				select {
				case <-ctx.Done():
					return fmt.Errorf("devmon: pair %s: %w", addr, ctx.Err())
				case <-time.After(100 * time.Millisecond):
				}
			}
			fmt.Printf("bonding attempt for %s finished\n", addr)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the bonding attempt")
	return cmd
}
