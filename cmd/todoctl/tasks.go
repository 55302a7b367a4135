package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

func tasksCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "List and edit tasks",
	}

	listCmd := &cobra.Command{
		Use:   "list [collection-id]",
		Short: "List the top-level tasks of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionID, err := parseID(args[0])
			if err != nil {
				return err
			}

			var completed *bool
			if cmd.Flags().Changed("completed") {
				value, _ := cmd.Flags().GetString("completed")
				parsed, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("invalid --completed value %q", value)
				}
				completed = &parsed
			}

			tasks, err := opts.client().ListTasksByCollection(cmd.Context(), collectionID, completed)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, tasks)
		},
	}
	listCmd.Flags().String("completed", "", "Only tasks with this completion state (true, false)")
	cmd.AddCommand(listCmd)
	cmd.AddCommand(toggleTaskCmd(opts))

	cmd.AddCommand(&cobra.Command{
		Use:   "get [id]",
		Short: "Show a task with its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := opts.client().GetTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, task)
		},
	})

	createCmd := &cobra.Command{
		Use:   "create [collection-id] [title]",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionID, err := parseID(args[0])
			if err != nil {
				return err
			}

			req := client.CreateTaskRequest{
				Title:        args[1],
				Date:         time.Now(),
				CollectionID: collectionID,
			}
			if cmd.Flags().Changed("date") {
				value, _ := cmd.Flags().GetString("date")
				req.Date, err = time.Parse(time.RFC3339, value)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			if cmd.Flags().Changed("description") {
				description, _ := cmd.Flags().GetString("description")
				req.Description = &description
			}
			if cmd.Flags().Changed("parent") {
				parentID, _ := cmd.Flags().GetInt64("parent")
				req.ParentTaskID = &parentID
			}
			req.Completed, _ = cmd.Flags().GetBool("completed")

			task, err := opts.client().CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, task)
		},
	}
	createCmd.Flags().String("date", "", "Due date in RFC 3339 format (default now)")
	createCmd.Flags().String("description", "", "Description")
	createCmd.Flags().Int64("parent", 0, "Parent task id")
	createCmd.Flags().Bool("completed", false, "Create the task completed")
	cmd.AddCommand(createCmd)

	updateCmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update a task, completing a task completes its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			req, err := updateTaskRequest(cmd)
			if err != nil {
				return err
			}
			task, err := opts.client().UpdateTask(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, task)
		},
	}
	addUpdateTaskFlags(updateCmd)
	cmd.AddCommand(updateCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a task and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.client().DeleteTask(cmd.Context(), id)
		},
	})

	return cmd
}

func subtasksCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtasks",
		Short: "List and edit the subtasks of a task",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [parent-id]",
		Short: "List the direct subtasks of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}
			subtasks, err := opts.client().ListSubtasks(cmd.Context(), parentID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, subtasks)
		},
	})

	createCmd := &cobra.Command{
		Use:   "create [parent-id] [title]",
		Short: "Create a subtask in the parent's collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}

			req := client.CreateSubtaskRequest{Title: args[1]}
			if cmd.Flags().Changed("description") {
				description, _ := cmd.Flags().GetString("description")
				req.Description = &description
			}
			subtask, err := opts.client().CreateSubtask(cmd.Context(), parentID, req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, subtask)
		},
	}
	createCmd.Flags().String("description", "", "Description")
	cmd.AddCommand(createCmd)

	updateCmd := &cobra.Command{
		Use:   "update [parent-id] [subtask-id]",
		Short: "Update a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}
			subtaskID, err := parseID(args[1])
			if err != nil {
				return err
			}
			req, err := updateTaskRequest(cmd)
			if err != nil {
				return err
			}
			subtask, err := opts.client().UpdateSubtask(cmd.Context(), parentID, subtaskID, req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, subtask)
		},
	}
	addUpdateTaskFlags(updateCmd)
	cmd.AddCommand(updateCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [parent-id] [subtask-id]",
		Short: "Delete a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}
			subtaskID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return opts.client().DeleteSubtask(cmd.Context(), parentID, subtaskID)
		},
	})

	return cmd
}

func addUpdateTaskFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("description", "", "New description")
	cmd.Flags().String("date", "", "New due date in RFC 3339 format")
	cmd.Flags().Bool("completed", false, "Completion state")
	cmd.Flags().Int64("collection", 0, "Move the task to this collection")
	cmd.Flags().Int64("parent", 0, "Nest the task under this task")
	cmd.Flags().Bool("detach", false, "Make the task a top-level task")
}

func updateTaskRequest(cmd *cobra.Command) (client.UpdateTaskRequest, error) {
	var req client.UpdateTaskRequest
	flags := cmd.Flags()

	if flags.Changed("title") {
		title, _ := flags.GetString("title")
		req.Title = &title
	}
	if flags.Changed("description") {
		description, _ := flags.GetString("description")
		req.Description = &description
	}
	if flags.Changed("date") {
		value, _ := flags.GetString("date")
		date, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return req, fmt.Errorf("invalid --date: %w", err)
		}
		req.Date = &date
	}
	if flags.Changed("completed") {
		completed, _ := flags.GetBool("completed")
		req.Completed = &completed
	}
	if flags.Changed("collection") {
		collectionID, _ := flags.GetInt64("collection")
		req.CollectionID = &collectionID
	}
	if flags.Changed("parent") {
		parentID, _ := flags.GetInt64("parent")
		req.ParentTaskID = &parentID
	}
	req.DetachParent, _ = flags.GetBool("detach")

	if req == (client.UpdateTaskRequest{}) {
		return req, errors.New("nothing to update")
	}
	return req, nil
}
