package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/OrgWeave/OrgWeave/internal/hitl"
)

var hitlCmd = &cobra.Command{
	Use:   "hitl",
	Short: "Human-in-the-loop review actions",
}

var hitlPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending reviews for a human mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		reviews, err := svc.HITL.PendingReviews(email)
		if err != nil {
			return err
		}
		if len(reviews) == 0 {
			fmt.Println("No pending reviews.")
			return nil
		}
		for _, r := range reviews {
			fmt.Printf("%s  %-20s %-28s %-10s expires in %s\n",
				r.Item.ItemID, r.Item.ReviewType, r.TaskTitle, r.RoleName, r.TimeRemaining)
		}
		return nil
	},
}

var hitlApproveCmd = &cobra.Command{
	Use:   "approve <item_id>",
	Short: "Approve a pending review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		comment, _ := cmd.Flags().GetString("comment")

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.HITL.Approve(cmd.Context(), args[0], user, comment, hitl.ActorContext{}); err != nil {
			return err
		}
		color.Green("Approved %s", args[0])
		return nil
	},
}

var hitlRejectCmd = &cobra.Command{
	Use:   "reject <item_id>",
	Short: "Reject a pending review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		reason, _ := cmd.Flags().GetString("reason")

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.HITL.Reject(cmd.Context(), args[0], user, reason, hitl.ActorContext{}); err != nil {
			return err
		}
		color.Yellow("Rejected %s", args[0])
		return nil
	},
}

var hitlOverrideCmd = &cobra.Command{
	Use:   "override <item_id>",
	Short: "Replace AI content with human content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		reason, _ := cmd.Flags().GetString("reason")
		contentJSON, _ := cmd.Flags().GetString("content")

		var content map[string]any
		if err := json.Unmarshal([]byte(contentJSON), &content); err != nil {
			return fmt.Errorf("parse --content: %w", err)
		}

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.HITL.Override(cmd.Context(), args[0], user, content, reason, hitl.ActorContext{}); err != nil {
			return err
		}
		color.Green("Overrode %s", args[0])
		return nil
	},
}

var hitlMessageCmd = &cobra.Command{
	Use:   "message <item_id>",
	Short: "Add an audit note without changing the flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		message, _ := cmd.Flags().GetString("message")

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		return svc.HITL.AddMessage(cmd.Context(), args[0], user, message, hitl.ActorContext{})
	},
}

var hitlSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Process expired reviews now",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		count, err := svc.HITL.CheckTimeouts(cmd.Context(), time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d expired item(s)\n", count)
		return nil
	},
}

var hitlPauseNodeCmd = &cobra.Command{
	Use:   "pause-node <node_id>",
	Short: "Pause a node (refuses new task assignments)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		reason, _ := cmd.Flags().GetString("reason")

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		return svc.HITL.PauseNode(cmd.Context(), args[0], user, reason)
	},
}

var hitlResumeNodeCmd = &cobra.Command{
	Use:   "resume-node <node_id>",
	Short: "Resume a paused node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		return svc.HITL.ResumeNode(cmd.Context(), args[0], user)
	},
}

func init() {
	hitlPendingCmd.Flags().String("email", "", "Human mirror email")
	hitlPendingCmd.MarkFlagRequired("email")

	for _, c := range []*cobra.Command{hitlApproveCmd, hitlRejectCmd, hitlOverrideCmd, hitlMessageCmd, hitlPauseNodeCmd, hitlResumeNodeCmd} {
		c.Flags().String("user", "", "Acting user id")
		c.MarkFlagRequired("user")
	}
	hitlApproveCmd.Flags().String("comment", "", "Optional comment")
	hitlRejectCmd.Flags().String("reason", "", "Reason for rejection")
	hitlRejectCmd.MarkFlagRequired("reason")
	hitlOverrideCmd.Flags().String("reason", "", "Reason for override")
	hitlOverrideCmd.Flags().String("content", "", "Replacement content as JSON object")
	hitlOverrideCmd.MarkFlagRequired("content")
	hitlMessageCmd.Flags().String("message", "", "Note text")
	hitlMessageCmd.MarkFlagRequired("message")
	hitlPauseNodeCmd.Flags().String("reason", "", "Reason for pause")

	hitlCmd.AddCommand(hitlPendingCmd)
	hitlCmd.AddCommand(hitlApproveCmd)
	hitlCmd.AddCommand(hitlRejectCmd)
	hitlCmd.AddCommand(hitlOverrideCmd)
	hitlCmd.AddCommand(hitlMessageCmd)
	hitlCmd.AddCommand(hitlSweepCmd)
	hitlCmd.AddCommand(hitlPauseNodeCmd)
	hitlCmd.AddCommand(hitlResumeNodeCmd)
}
