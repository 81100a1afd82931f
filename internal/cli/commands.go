package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/s1natex/lightly-tasks/internal/identity"
	"github.com/s1natex/lightly-tasks/internal/tasks"
)

var errNotFound = errors.New("task not found")

func newAddCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ok := a.store.Add(strings.Join(args, " "), category)
			if !ok {
				return errors.New("task text is empty")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added %s\n", res.Task.ID)
			if res.CategoryAdded {
				fmt.Fprintf(out, "New category %q\n", res.Task.Category)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "category (default General)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var status, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := tasks.ParseStatus(status)
			if err != nil {
				return fmt.Errorf("%w: %q (want All, Active or Done)", err, status)
			}
			list := a.store.Filter(tasks.Filter{Status: st, Search: search})
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No tasks.")
				return nil
			}
			for _, t := range list {
				printTask(out, t)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "All", "All, Active or Done")
	cmd.Flags().StringVarP(&search, "search", "q", "", "case-insensitive text search")
	return cmd
}

func newToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark a task done, or pending again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.store.Get(args[0]); !ok {
				return fmt.Errorf("%w: %s", errNotFound, args[0])
			}
			a.store.Toggle(args[0])
			t, _ := a.store.Get(args[0])
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Replace a task's text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, ok := a.store.Get(id); !ok {
				return fmt.Errorf("%w: %s", errNotFound, id)
			}
			text := strings.Join(args[1:], " ")
			if strings.TrimSpace(text) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Edit cancelled.")
				return nil
			}
			a.store.Edit(id, text)
			t, _ := a.store.Get(id)
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a task for good",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := a.store.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", errNotFound, args[0])
			}
			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %q?", t.Text)) {
				fmt.Fprintln(out, "Kept.")
				return nil
			}
			a.store.Remove(t.ID)
			fmt.Fprintf(out, "Deleted %s\n", t.ID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List known categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range a.store.Categories() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func newStreakCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "streak",
		Aliases: []string{"profile"},
		Short:   "Show completion counts and the daily streak",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.store.Profile()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tasks completed: %d\n", p.Done)
			fmt.Fprintf(out, "Total tasks: %d\n", p.Total)
			fmt.Fprintf(out, "Daily streak: %d\n", p.Streak)
			return nil
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var id identity.Identity
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token signed with the configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			if a.cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not configured")
			}
			if id.Subject == "" {
				id.Subject = id.Email
			}
			tok, err := identity.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.JWTIssuer).Issue(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.Subject, "subject", "", "subject claim (defaults to email)")
	cmd.Flags().StringVar(&id.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&id.Email, "email", "", "email address")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func printTask(w io.Writer, t tasks.Task) {
	mark := " "
	if t.Done {
		mark = "x"
	}
	fmt.Fprintf(w, "[%s] %s  %s  (%s)\n", mark, t.ID, t.Text, t.Category)
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
