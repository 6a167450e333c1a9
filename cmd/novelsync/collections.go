package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/store"
)

func newRateCmd() *cobra.Command {
	var review string
	cmd := &cobra.Command{
		Use:   "rate <novel-id> <1-5>",
		Short: "Rate a novel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			rating, err := strconv.Atoi(args[1])
			if err != nil || rating < 1 || rating > 5 {
				return fmt.Errorf("rating must be 1-5")
			}
			a.monitor.CheckNow(ctx)
			res := a.ratings.Rate(ctx, args[0], rating, review)
			fmt.Printf("Rated %d/5 (%s)\n", rating, res.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&review, "review", "", "optional review text (kept local)")
	return cmd
}

func newFollowCmd() *cobra.Command {
	var unfollow bool
	cmd := &cobra.Command{
		Use:   "follow <author-id> [name]",
		Short: "Follow or unfollow an author",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			a.monitor.CheckNow(ctx)

			if unfollow {
				res := a.follows.Unfollow(ctx, args[0])
				fmt.Printf("Unfollowed %s (%s)\n", args[0], res.Status)
				return nil
			}
			author := domain.FollowedAuthor{AuthorID: args[0]}
			if len(args) == 2 {
				author.Name = args[1]
			}
			res := a.follows.Follow(ctx, author)
			fmt.Printf("Followed %s (%s)\n", args[0], res.Status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unfollow, "remove", false, "unfollow instead")
	return cmd
}

func newFollowingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "following",
		Short: "List followed authors",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			follows := a.follows.Following()
			if len(follows) == 0 {
				fmt.Println("Not following anyone.")
				return nil
			}
			for _, fa := range follows {
				name := fa.Name
				if name == "" {
					name = fa.AuthorID
				}
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newChaptersCmd() *cobra.Command {
	var pull bool
	cmd := &cobra.Command{
		Use:   "chapters <novel-id>",
		Short: "List cached chapters, optionally merging in the remote set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			novelID := args[0]

			if pull {
				a.monitor.CheckNow(ctx)
				if err := a.engine.SyncChapters(ctx, novelID); err != nil {
					return err
				}
			}

			cache := map[string][]domain.Chapter{}
			a.store.GetJSON(store.KeyChapters, &cache)
			chapters := cache[novelID]
			if len(chapters) == 0 {
				fmt.Println("No cached chapters.")
				return nil
			}
			for _, ch := range chapters {
				marker := ""
				if ch.Status == domain.ChapterDraft {
					marker = "  [draft]"
				}
				fmt.Printf("%3d. %s%s\n", ch.Number, ch.Title, marker)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pull, "pull", false, "merge remote chapters before listing")
	return cmd
}
