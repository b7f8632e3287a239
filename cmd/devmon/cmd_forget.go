package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/makesoftwaresafe/bluez/device"
)

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <addr>",
		Short: "Remove a device's persisted pairing material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := device.Address(args[0])
			ctx := cmd.Context()

			sess, err := newSession()
			if err != nil {
				return err
			}

			if err := sess.adapter.RemoveBonding(ctx, addr); err != nil {
				return fmt.Errorf("devmon: remove bonding for %s: %w", addr, err)
			}
			adapterAddr := device.Address(sess.adapter.Path())
			if err := sess.store.DeleteInfo(adapterAddr, addr); err != nil {
				return fmt.Errorf("devmon: delete info for %s: %w", addr, err)
			}
			if err := sess.store.DeleteCache(adapterAddr, addr); err != nil {
				return fmt.Errorf("devmon: delete cache for %s: %w", addr, err)
			}
			fmt.Printf("forgot %s\n", addr)
			return nil
		},
	}
}
