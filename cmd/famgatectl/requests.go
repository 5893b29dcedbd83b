package main

import (
	"fmt"

	"github.com/spf13/cobra"

	famgate "github.com/famgate/famgate"
)

func init() {
	requestsCmd := &cobra.Command{Use: "requests", Short: "Request operations"}

	// create
	var requester, kind, target, reason string
	var minutes int
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Open a request on behalf of a child",
		RunE: func(cmd *cobra.Command, args []string) error {
			if familyFlag == "" || requester == "" {
				return fmt.Errorf("--family and --requester required")
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			r, err := c.CreateRequest(cmd.Context(), famgate.CreateRequestInput{
				FamilyID:        familyFlag,
				RequesterID:     requester,
				Kind:            famgate.RequestKind(kind),
				Target:          target,
				DurationMinutes: minutes,
				Reason:          reason,
			})
			if err != nil {
				return err
			}
			return printJSON(r)
		},
	}
	createCmd.Flags().StringVarP(&requester, "requester", "u", "", "Requesting child user ID (required)")
	createCmd.Flags().StringVarP(&kind, "kind", "k", "extra_time", "Request kind: extra_time, app_access, bedtime_extension, rule_suspension")
	createCmd.Flags().StringVar(&target, "target", "", "Target app or rule")
	createCmd.Flags().IntVarP(&minutes, "minutes", "m", 30, "Requested duration in minutes")
	createCmd.Flags().StringVar(&reason, "reason", "", "Why the child is asking")
	_ = createCmd.MarkFlagRequired("requester")
	requestsCmd.AddCommand(createCmd)

	// approve / deny share flags
	var parent, verdict string
	decide := func(approve bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if parent == "" {
				return fmt.Errorf("--parent required")
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			var r *famgate.Request
			if approve {
				r, err = c.ApproveRequest(cmd.Context(), args[0], parent, verdict)
			} else {
				r, err = c.DenyRequest(cmd.Context(), args[0], parent, verdict)
			}
			if err != nil {
				return err
			}
			return printJSON(r)
		}
	}

	approveCmd := &cobra.Command{
		Use:   "approve REQUEST_ID",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE:  decide(true),
	}
	denyCmd := &cobra.Command{
		Use:   "deny REQUEST_ID",
		Short: "Deny a pending request",
		Args:  cobra.ExactArgs(1),
		RunE:  decide(false),
	}
	for _, cmd := range []*cobra.Command{approveCmd, denyCmd} {
		cmd.Flags().StringVarP(&parent, "parent", "p", "", "Deciding parent user ID (required)")
		cmd.Flags().StringVar(&verdict, "reason", "", "Decision reason")
		_ = cmd.MarkFlagRequired("parent")
		requestsCmd.AddCommand(cmd)
	}

	// list
	var pendingOnly bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the family's requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if familyFlag == "" {
				return fmt.Errorf("--family required")
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			var rs []*famgate.Request
			if pendingOnly {
				rs, err = c.ListPendingRequests(cmd.Context(), familyFlag)
			} else {
				rs, err = c.ListRequests(cmd.Context(), familyFlag)
			}
			if err != nil {
				return err
			}
			return printJSON(rs)
		},
	}
	listCmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only pending requests")
	requestsCmd.AddCommand(listCmd)

	rootCmd.AddCommand(requestsCmd)
}
