package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/novelshare/novelsync/internal/domain"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "novelsync",
		Short:         "Offline-tolerant sync client for your novel library",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newSearchCmd(),
		newQueueCmd(),
		newLibraryCmd(),
		newHistoryCmd(),
		newRateCmd(),
		newFollowCmd(),
		newFollowingCmd(),
		newChaptersCmd(),
	)
	return root
}

// withApp wires the client, runs fn, and tears down.
func withApp(fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a)
	}
}

func newLoginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and restore your synced data",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if email == "" {
				if creds, ok := a.session.Credentials(); ok {
					email = creds.Email
					fmt.Printf("Using saved email %s\n", email)
				}
			}
			if email == "" {
				return fmt.Errorf("email required: pass --email")
			}

			fmt.Print("Password: ")
			pw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			sess, err := a.client.SignIn(ctx, email, string(pw))
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}

			a.session.SaveCredentials(sess.User.Email, sess.User.Username)
			a.session.SwitchMode(false)
			if profile, err := a.client.GetProfile(ctx, sess.User.ID); err == nil && profile != nil {
				a.session.SaveProfile(*profile)
			}

			a.monitor.CheckNow(ctx)
			res := a.engine.FullSync(ctx, sess.User.ID)
			if err := a.engine.SyncFollowing(ctx, sess.User.ID); err != nil {
				res.Failures++
			}
			if res.Failures > 0 {
				fmt.Printf("Signed in as %s (sync incomplete: %d pull(s) failed)\n", sess.User.Email, res.Failures)
				return nil
			}
			fmt.Printf("Signed in as %s\n", sess.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local user data",
		RunE: withApp(func(ctx context.Context, a *app) error {
			a.session.Logout(ctx)
			fmt.Println("Signed out. Local user data cleared; guest mode active.")
			return nil
		}),
	}
}

func newSyncCmd() *cobra.Command {
	var resolve bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a full sync against the backend",
		RunE: withApp(func(ctx context.Context, a *app) error {
			user, err := a.client.CurrentUser(ctx)
			if err != nil || user == nil {
				return fmt.Errorf("not signed in: run 'novelsync login' first")
			}
			if !a.monitor.CheckNow(ctx) {
				return fmt.Errorf("backend unreachable: %w", domain.ErrRemoteOffline)
			}

			if resolve {
				resolved, remaining, err := a.engine.ResolveConflicts(ctx, user.ID)
				if err != nil {
					return err
				}
				fmt.Printf("Conflicts resolved: %d, remaining: %d\n", resolved, remaining)
				return nil
			}

			replayed, failed := a.engine.ProcessQueue(ctx)
			if replayed+failed > 0 {
				fmt.Printf("Queue replay: %d pushed, %d failed\n", replayed, failed)
			}
			res := a.engine.FullSync(ctx, user.ID)
			if err := a.engine.SyncFollowing(ctx, user.ID); err != nil {
				res.Failures++
				res.Errors = append(res.Errors, err)
			}
			if res.Failures > 0 {
				for _, err := range res.Errors {
					fmt.Printf("  pull failed: %v\n", err)
				}
				return fmt.Errorf("sync incomplete: %d pull(s) failed", res.Failures)
			}
			fmt.Printf("Sync complete: %d novels, %d history entries\n",
				len(a.library.Items()), len(a.history.Entries()))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&resolve, "resolve", false, "detect and resolve local/remote conflicts")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queue, and storage status",
		RunE: withApp(func(ctx context.Context, a *app) error {
			a.monitor.CheckNow(ctx)
			st := a.engine.Status()

			fmt.Printf("Connectivity:  %s\n", st.State)
			fmt.Printf("Pending ops:   %d\n", st.Pending)
			if st.LastSync.IsZero() {
				fmt.Printf("Last sync:     never\n")
			} else {
				fmt.Printf("Last sync:     %s\n", st.LastSync.Format(time.RFC1123))
			}

			mode := "user"
			if a.session.IsGuest() {
				mode = "guest"
			}
			fmt.Printf("Mode:          %s\n", mode)
			if profile, ok := a.session.Profile(); ok {
				fmt.Printf("Profile:       %s (%s)\n", profile.Username, profile.Email)
			}

			usage := a.store.Usage()
			fmt.Printf("Local storage: %d bytes (%.1f%% of budget)\n", usage.BytesUsed, usage.PercentUsed)
			return nil
		}),
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search novels (remote, with offline fallback to your library)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			query := strings.Join(args, " ")
			results, err := a.search.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No matches.")
				return nil
			}
			for _, n := range results {
				fmt.Printf("%-36s  %s by %s\n", n.ID, n.Title, n.Author)
			}
			return nil
		},
	}
}

func newQueueCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show or clear pending offline operations",
		RunE: withApp(func(ctx context.Context, a *app) error {
			if clear {
				a.queue.Clear()
				fmt.Println("Queue cleared.")
				return nil
			}
			ops := a.queue.List()
			if len(ops) == 0 {
				fmt.Println("Queue empty.")
				return nil
			}
			for _, op := range ops {
				line := fmt.Sprintf("%-9s %s", op.Type, op.NovelID)
				if op.AuthorID != "" {
					line = fmt.Sprintf("%-9s %s", op.Type, op.AuthorID)
				}
				if op.Retries > 0 {
					line += fmt.Sprintf("  (retries: %d, last error: %s)", op.Retries, op.LastError)
				}
				fmt.Println(line)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "discard all pending operations")
	return cmd
}

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage your local library",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List library items",
		RunE: withApp(func(ctx context.Context, a *app) error {
			items := a.library.Items()
			if len(items) == 0 {
				fmt.Println("Library empty.")
				return nil
			}
			for _, item := range items {
				fmt.Printf("%-36s  %s by %s (ch %d/%d, %.0f%%)\n",
					item.NovelID, item.Title, item.Author,
					item.CurrentChapter, item.TotalChapters, item.Progress)
			}
			return nil
		}),
	}

	add := &cobra.Command{
		Use:   "add <novel-id>",
		Short: "Add a novel to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			a.monitor.CheckNow(ctx)
			novel, err := a.client.Novel(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to look up novel: %w", err)
			}
			if novel == nil {
				return fmt.Errorf("novel %q not found", args[0])
			}
			res := a.library.Add(ctx, novel)
			fmt.Printf("Added %q (%s)\n", novel.Title, res.Status)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <novel-id>",
		Short: "Remove a novel from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			a.monitor.CheckNow(ctx)
			res := a.library.Remove(ctx, args[0])
			fmt.Printf("Removed %s (%s)\n", args[0], res.Status)
			return nil
		},
	}

	progress := &cobra.Command{
		Use:   "progress <novel-id> <chapter-number>",
		Short: "Record reading progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			chapter, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid chapter number %q", args[1])
			}
			a.monitor.CheckNow(ctx)
			res := a.library.UpdateProgress(ctx, args[0], "", chapter)
			fmt.Printf("Progress saved (%s)\n", res.Status)
			return nil
		},
	}

	cmd.AddCommand(list, add, remove, progress)
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear reading history",
		RunE: withApp(func(ctx context.Context, a *app) error {
			if clear {
				a.history.Clear(ctx)
				fmt.Println("History cleared.")
				return nil
			}
			entries := a.history.Entries()
			if len(entries) == 0 {
				fmt.Println("No reading history.")
				return nil
			}
			for _, en := range entries {
				when := time.UnixMilli(en.Timestamp).Format("2006-01-02 15:04")
				fmt.Printf("%s  %s", when, en.NovelTitle)
				if en.ChapterTitle != "" {
					fmt.Printf(" / %s", en.ChapterTitle)
				}
				fmt.Println()
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "clear local and remote history")
	return cmd
}
