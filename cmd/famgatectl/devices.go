package main

import (
	"fmt"

	"github.com/spf13/cobra"

	famgate "github.com/famgate/famgate"
)

func init() {
	devicesCmd := &cobra.Command{Use: "devices", Short: "Device operations"}

	// pair
	var owner, name, platform string
	pairCmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair a child device into the family",
		RunE: func(cmd *cobra.Command, args []string) error {
			if familyFlag == "" || owner == "" {
				return fmt.Errorf("--family and --owner required")
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			d, err := c.PairDevice(cmd.Context(), familyFlag, owner, name, platform)
			if err != nil {
				return err
			}
			return printJSON(d)
		},
	}
	pairCmd.Flags().StringVarP(&owner, "owner", "o", "", "Owning child user ID (required)")
	pairCmd.Flags().StringVarP(&name, "name", "n", "", "Device display name")
	pairCmd.Flags().StringVarP(&platform, "platform", "p", "", "Device platform (ios, android, ...)")
	_ = pairCmd.MarkFlagRequired("owner")
	devicesCmd.AddCommand(pairCmd)

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the family's devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if familyFlag == "" {
				return fmt.Errorf("--family required")
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ds, err := c.ListDevices(cmd.Context(), familyFlag)
			if err != nil {
				return err
			}
			return printJSON(ds)
		},
	}
	devicesCmd.AddCommand(listCmd)

	// set-status
	var status string
	statusCmd := &cobra.Command{
		Use:   "set-status DEVICE_ID",
		Short: "Move a device between active, paused and unpaired",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			d, err := c.SetDeviceStatus(cmd.Context(), args[0], famgate.DeviceStatus(status))
			if err != nil {
				return err
			}
			return printJSON(d)
		},
	}
	statusCmd.Flags().StringVarP(&status, "status", "s", "active", "New status")
	devicesCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(devicesCmd)
}
