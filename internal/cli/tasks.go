package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"taskmaster/internal/client"
	"taskmaster/internal/client/taskstore"
	"taskmaster/internal/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// pageSize is the largest page the API serves.
const pageSize = 100

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and change your tasks",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Cobra only runs the closest persistent hook.
			if root := cmd.Root(); root.PersistentPreRunE != nil {
				if err := root.PersistentPreRunE(cmd, args); err != nil {
					return err
				}
			}
			if !a.session.State().IsAuthenticated {
				return errNotSignedIn
			}
			return nil
		},
	}

	cmd.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDoneCmd(a),
		newRmCmd(a),
		newReorderCmd(a),
	)

	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		p      client.ListParams
		status string
		manual bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Status = models.TaskStatus(status)

			var page models.TaskPage
			err := a.authed(cmd.Context(), func() error {
				var err error
				page, err = a.mut.Refetch(cmd.Context(), p)
				return err
			})
			if err != nil {
				return err
			}

			tasks := a.store.Snapshot().Tasks()
			if manual {
				sortByOrder(tasks)
			}

			renderTasks(a.out, tasks)
			fmt.Fprintf(a.out, "page %d/%d, %d tasks\n", page.Page, page.TotalPages, page.Total)

			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&p.Page, "page", 0, "page number, starting at 1")
	f.IntVar(&p.Limit, "limit", 0, "tasks per page (max 100)")
	f.StringVar(&status, "status", "", "NOT_STARTED, IN_PROGRESS, COMPLETED or CANCELLED")
	f.StringVar(&p.Search, "search", "", "substring of title or description")
	f.StringVar(&p.SortBy, "sort-by", "", "title, status, dueDate, createdAt or updatedAt")
	f.StringVar(&p.SortOrder, "order", "", "asc or desc")
	f.StringVar(&p.DueDate, "due", "", "only tasks due on this day (YYYY-MM-DD)")
	f.BoolVar(&manual, "manual", false, "show the page in manual (reordered) order")

	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		in     client.TaskInput
		status string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			in.Status = models.TaskStatus(status)

			var task models.Task
			err := a.authed(cmd.Context(), func() error {
				var err error
				task, err = a.mut.Create(cmd.Context(), in)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Created %s\n", task.ID)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.DueDate, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&in.Description, "desc", "", "description")
	f.StringVar(&status, "status", "", "initial status")
	_ = cmd.MarkFlagRequired("due")

	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var title, desc, due, status string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in client.TaskUpdate
			f := cmd.Flags()
			if f.Changed("title") {
				in.Title = &title
			}
			if f.Changed("desc") {
				in.Description = &desc
			}
			if f.Changed("due") {
				in.DueDate = &due
			}
			if f.Changed("status") {
				s := models.TaskStatus(status)
				in.Status = &s
			}

			return a.authed(cmd.Context(), func() error {
				if err := a.load(cmd.Context(), args[0]); err != nil {
					return err
				}

				task, err := a.mut.Update(cmd.Context(), args[0], in)
				if err != nil {
					return err
				}

				renderTasks(a.out, []models.Task{task})

				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&desc, "desc", "", "new description")
	f.StringVar(&due, "due", "", "new due date")
	f.StringVar(&status, "status", "", "new status")

	return cmd
}

func newDoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between completed and not started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.authed(cmd.Context(), func() error {
				if err := a.load(cmd.Context(), args[0]); err != nil {
					return err
				}

				task, err := a.mut.Toggle(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(a.out, "%s is now %s\n", task.Title, task.Status)

				return nil
			})
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.authed(cmd.Context(), func() error {
				if err := a.load(cmd.Context(), args[0]); err != nil {
					return err
				}

				if err := a.mut.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}

				fmt.Fprintf(a.out, "Deleted %s\n", args[0])

				return nil
			})
		},
	}
}

func newReorderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <from> <to>",
		Short: "Move a task to another position in manual order (1-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[0])
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}

			return a.authed(cmd.Context(), func() error {
				tasks, err := a.listAll(cmd.Context())
				if err != nil {
					return err
				}

				sortByOrder(tasks)
				a.store.Dispatch(taskstore.SetAll{Tasks: tasks})

				if err := a.mut.Reorder(cmd.Context(), from-1, to-1); err != nil {
					return err
				}

				renderTasks(a.out, a.store.Snapshot().Tasks())

				return nil
			})
		},
	}
}

// listAll fetches every task of the user, page by page. Reorder persists
// positions for the whole list, so a partial one would collide.
func (a *app) listAll(ctx context.Context) ([]models.Task, error) {
	var all []models.Task

	for p := 1; ; p++ {
		page, err := a.api.ListTasks(ctx, client.ListParams{
			Page:      p,
			Limit:     pageSize,
			SortBy:    "createdAt",
			SortOrder: models.SortAsc,
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page.Tasks...)

		if int64(p) >= page.TotalPages || len(page.Tasks) == 0 {
			return all, nil
		}
	}
}

// load puts the task with id into the local store so mutations can
// snapshot it.
func (a *app) load(ctx context.Context, id string) error {
	task, err := a.api.GetTask(ctx, id)
	if err != nil {
		return err
	}

	a.store.Dispatch(taskstore.Add{Task: task})

	return nil
}

func sortByOrder(tasks []models.Task) {
	slices.SortStableFunc(tasks, func(x, y models.Task) int {
		return cmp.Compare(x.Order, y.Order)
	})
}

var statusStyles = map[models.TaskStatus]lipgloss.Style{
	models.StatusNotStarted: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	models.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
	models.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Strikethrough(true),
	models.StatusCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
}

func renderTasks(w io.Writer, tasks []models.Task) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "TITLE", "STATUS", "DUE")

	for i, task := range tasks {
		t.Row(
			strconv.Itoa(i+1),
			task.ID,
			task.Title,
			statusStyles[task.Status].Render(string(task.Status)),
			task.DueDate.UTC().Format("2006-01-02"),
		)
	}

	fmt.Fprintln(w, t.Render())
}
