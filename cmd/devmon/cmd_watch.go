package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/makesoftwaresafe/bluez/bluez"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <addr>",
		Short: "Stream property-change events for one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			ctx := cmd.Context()

			sess, err := newSession()
			if err != nil {
				return err
			}
			dev := sess.newDevice(ctx, addr)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go dev.Run(runCtx)

			found := make(chan bluez.DeviceFound, 32)
			go func() {
				for df := range found {
					if df.Addr == addr {
						dev.Deliver(df.Event)
					}
				}
			}()

			fmt.Printf("watching %s (ctrl-c to stop)\n", addr)
			if err := bluez.Scan(runCtx, sess.conn, sess.adapter, "le", "", found); err != nil && runCtx.Err() == nil {
				return fmt.Errorf("devmon: scan: %w", err)
			}
			return nil
		},
	}
}
