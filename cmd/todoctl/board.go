package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/adanyl0v/go-todo-collections/internal/optimistic"
)

type boardTask struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Completed bool        `json:"completed"`
	Subtasks  []boardTask `json:"subtasks,omitempty"`
}

// board is a collection with its task tree, as seen through the cache.
type board struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	CompletedTasks int         `json:"completedTasks"`
	TotalTasks     int         `json:"totalTasks"`
	Tasks          []boardTask `json:"tasks"`
}

func newBoardTasks(tasks []optimistic.Task) []boardTask {
	out := make([]boardTask, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, boardTask{
			ID:        task.ID.Value(),
			Title:     task.Title,
			Completed: task.Completed,
			Subtasks:  newBoardTasks(task.Subtasks),
		})
	}
	return out
}

// synchronizer returns a cache over the API client. Failed mutations are
// reported on stderr.
func (o *options) synchronizer(cmd *cobra.Command) *optimistic.Synchronizer {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(zerolog.WarnLevel).
		With().
		Timestamp().
		Logger()
	return optimistic.New(o.client(), optimistic.WithLogger(logger))
}

func loadBoard(cmd *cobra.Command, sync *optimistic.Synchronizer, collectionID int64) (*board, error) {
	collection, err := sync.Collection(cmd.Context(), collectionID)
	if err != nil {
		return nil, err
	}
	tasks, err := sync.Tasks(cmd.Context(), collectionID)
	if err != nil {
		return nil, err
	}
	return &board{
		ID:             collection.ID.Value(),
		Name:           collection.Name,
		CompletedTasks: collection.CompletedTasks,
		TotalTasks:     collection.TotalTasks,
		Tasks:          newBoardTasks(tasks),
	}, nil
}

func findBoardTask(tasks []optimistic.Task, id int64) *optimistic.Task {
	for i := range tasks {
		if tasks[i].ID == optimistic.Confirmed(id) {
			return &tasks[i]
		}
		if found := findBoardTask(tasks[i].Subtasks, id); found != nil {
			return found
		}
	}
	return nil
}

func boardCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "board [collection-id]",
		Short: "Show a collection with its stats and task tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionID, err := parseID(args[0])
			if err != nil {
				return err
			}

			sync := opts.synchronizer(cmd)
			defer sync.Close()

			b, err := loadBoard(cmd, sync, collectionID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, b)
		},
	}
}

func toggleTaskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [collection-id] [id]",
		Short: "Flip the completion of a task and show the updated board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionID, err := parseID(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}

			sync := opts.synchronizer(cmd)
			defer sync.Close()

			tasks, err := sync.Tasks(cmd.Context(), collectionID)
			if err != nil {
				return err
			}
			task := findBoardTask(tasks, id)
			if task == nil {
				return fmt.Errorf("task %d not found in collection %d", id, collectionID)
			}

			completed := !task.Completed
			_, err = sync.UpdateTask(cmd.Context(), collectionID, task.ID, optimistic.TaskPatch{Completed: &completed})
			if err != nil {
				return err
			}

			b, err := loadBoard(cmd, sync, collectionID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, b)
		},
	}
}
