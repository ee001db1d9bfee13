package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Submit and inspect tasks",
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit <org_id>",
	Short: "Submit a task to an org's root node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		submittedBy, _ := cmd.Flags().GetString("by")
		inputJSON, _ := cmd.Flags().GetString("input")
		deadlineStr, _ := cmd.Flags().GetString("deadline")

		var input map[string]any
		if inputJSON != "" {
			if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
				return fmt.Errorf("parse --input: %w", err)
			}
		}
		var deadline *time.Time
		if deadlineStr != "" {
			t, err := time.Parse(time.RFC3339, deadlineStr)
			if err != nil {
				return fmt.Errorf("parse --deadline: %w", err)
			}
			deadline = &t
		}

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		task, err := svc.Engine.SubmitTask(cmd.Context(), args[0], title, description, input, priority, deadline, submittedBy)
		if err != nil {
			return err
		}
		color.Green("Submitted task %s (%s)", task.TaskID, task.Title)
		return nil
	},
}

var taskTreeCmd = &cobra.Command{
	Use:   "tree <task_id>",
	Short: "Show a task's delegation tree with responses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		tree, err := svc.Engine.GetTaskTree(args[0])
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(tree, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list <org_id>",
	Short: "List an org's active tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		tasks, err := svc.Engine.GetOrgActiveTasks(args[0])
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%s  %-12s %-32s %d/%d\n",
				t.TaskID, t.Status, t.Title, t.ReceivedResponses, t.ExpectedResponses)
		}
		return nil
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task_id>",
	Short: "Cancel a non-terminal task (children keep running)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("by")
		reason, _ := cmd.Flags().GetString("reason")

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.Engine.CancelTask(cmd.Context(), args[0], user, reason); err != nil {
			return err
		}
		color.Yellow("Cancelled task %s", args[0])
		return nil
	},
}

func init() {
	taskSubmitCmd.Flags().String("title", "", "Task title")
	taskSubmitCmd.Flags().String("description", "", "Task description")
	taskSubmitCmd.Flags().String("priority", "medium", "Priority: low|medium|high|urgent")
	taskSubmitCmd.Flags().String("by", "cli", "Submitter")
	taskSubmitCmd.Flags().String("input", "", "Input data as JSON object")
	taskSubmitCmd.Flags().String("deadline", "", "Deadline (RFC3339)")
	taskSubmitCmd.MarkFlagRequired("title")

	taskCancelCmd.Flags().String("by", "cli", "User cancelling")
	taskCancelCmd.Flags().String("reason", "", "Reason")

	taskCmd.AddCommand(taskSubmitCmd)
	taskCmd.AddCommand(taskTreeCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskCancelCmd)
}
