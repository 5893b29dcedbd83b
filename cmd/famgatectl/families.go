package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	familiesCmd := &cobra.Command{Use: "families", Short: "Family operations"}

	// create
	var name, owner, tz string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a family",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return fmt.Errorf("--owner required")
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			f, err := c.CreateFamily(cmd.Context(), name, owner, tz)
			if err != nil {
				return err
			}
			return printJSON(f)
		},
	}
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Family display name")
	createCmd.Flags().StringVarP(&owner, "owner", "o", "", "Owner user ID (required)")
	createCmd.Flags().StringVarP(&tz, "tz", "t", "", "Time zone (defaults UTC)")
	_ = createCmd.MarkFlagRequired("owner")
	familiesCmd.AddCommand(createCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get FAMILY_ID",
		Short: "Get family by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			f, err := c.GetFamily(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(f)
		},
	}
	familiesCmd.AddCommand(getCmd)

	// add-member
	addCmd := &cobra.Command{
		Use:   "add-member USER_ID",
		Short: "Add a member to the family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if familyFlag == "" {
				return fmt.Errorf("--family required")
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			f, err := c.AddFamilyMember(cmd.Context(), familyFlag, args[0])
			if err != nil {
				return err
			}
			return printJSON(f)
		},
	}
	familiesCmd.AddCommand(addCmd)

	rootCmd.AddCommand(familiesCmd)
}
