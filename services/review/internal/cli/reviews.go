package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/board"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/submission"
)

func (a *app) reviewsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reviews",
		Aliases: []string{"review", "r"},
		Short:   "List, submit, vote on and report reviews",
	}
	cmd.AddCommand(
		a.reviewsListCommand(),
		a.reviewsMineCommand(),
		a.reviewsVoteCommand(),
		a.reviewsReportCommand(),
		a.reviewsSubmitCommand(),
	)
	return cmd
}

// loadBoard fetches every review of a doctor into a board backed by the
// service client.
func (a *app) loadBoard(ctx context.Context, doctorID string, opts ...board.Option) (*board.Board, error) {
	reviews, summary, err := a.client.ListAll(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	opts = append([]board.Option{board.WithLogger(a.logger)}, opts...)
	return board.New(reviews, summary, a.client, a.client, opts...), nil
}

func (a *app) reviewsListCommand() *cobra.Command {
	var (
		sortFlag string
		rating   int
		page     int
		perPage  int
	)
	cmd := &cobra.Command{
		Use:   "list <doctorId>",
		Short: "Show a doctor's reviews with the rating summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := domain.ParseSort(sortFlag)
			if err != nil {
				return err
			}
			filter := domain.NoFilter
			if rating != 0 {
				if filter, err = domain.ParseFilter(strconv.Itoa(rating)); err != nil {
					return err
				}
			}

			ctx := requestContext(cmd.Context())
			b, err := a.loadBoard(ctx, args[0])
			if err != nil {
				return err
			}

			view := b.View(sort, filter, pagination.New(page, perPage))
			a.ui.Distribution(view.Summary)
			fmt.Fprintln(a.ui.Out)
			if len(view.Reviews) == 0 {
				a.ui.Info("No reviews match (filter: %s)", filter)
				return nil
			}
			a.printReviews(view.Reviews)
			a.ui.Info("Page %d of %d, %d reviews, sorted by %s, filter %s",
				view.Page, max(view.TotalPages, 1), view.TotalCount, strings.ToLower(string(sort)), filter)
			return nil
		},
	}
	cmd.Flags().StringVar(&sortFlag, "sort", "recent", "Sort order: recent, helpful or rating")
	cmd.Flags().IntVar(&rating, "rating", 0, "Only show reviews with this many stars (1-5)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", pagination.DefaultPerPage, "Reviews per page")
	return cmd
}

func (a *app) printReviews(reviews []domain.Review) {
	table := a.ui.Table([]string{"ID", "Rating", "Author", "Channel", "Helpful", "Your vote", "Date", "Review"})
	for _, r := range reviews {
		text := r.Title
		if text == "" {
			text = r.Body
		}
		if len([]rune(text)) > 48 {
			text = string([]rune(text)[:47]) + "…"
		}
		author := r.DisplayName()
		if r.IsVerifiedPatient {
			author += " " + green("✓")
		}
		_ = table.Append([]string{
			cyan(r.ID),
			Stars(r.OverallRating),
			author,
			string(r.Channel),
			fmt.Sprintf("%d/%d", r.HelpfulCount, r.NotHelpfulCount),
			voteLabel(r.CurrentUserVote),
			r.CreatedAt.Format("2006-01-02"),
			text,
		})
	}
	_ = table.Render()
}

func (a *app) reviewsMineCommand() *cobra.Command {
	var page, perPage int
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List the reviews you have written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			res, err := a.client.MyReviews(requestContext(cmd.Context()), pagination.New(page, perPage))
			if err != nil {
				return err
			}
			if len(res.Data) == 0 {
				a.ui.Info("You have not written any reviews yet")
				return nil
			}
			table := a.ui.Table([]string{"ID", "Doctor", "Rating", "Status", "Date"})
			for _, r := range res.Data {
				_ = table.Append([]string{
					cyan(r.ID),
					r.DoctorID,
					Stars(r.OverallRating),
					string(r.Status),
					r.CreatedAt.Format("2006-01-02"),
				})
			}
			_ = table.Render()
			a.ui.Info("Page %d of %d", res.Page, max(res.TotalPages, 1))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", pagination.DefaultPerPage, "Reviews per page")
	return cmd
}

func (a *app) reviewsVoteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <doctorId> <reviewId> helpful|not-helpful",
		Short: "Mark a review as helpful or not helpful",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			vote, err := domain.ParseVoteType(args[2])
			if err != nil {
				return err
			}

			ctx := requestContext(cmd.Context())
			var syncErr *board.VoteSyncError
			b, err := a.loadBoard(ctx, args[0], board.OnVoteSyncFailed(func(e *board.VoteSyncError) {
				syncErr = e
			}))
			if err != nil {
				return err
			}

			before, ok := b.Review(args[1])
			if ok && before.CurrentUserVote == vote {
				a.ui.Info("You already marked this review %s", voteLabel(vote))
				return nil
			}
			if _, err := b.CastVote(ctx, args[1], vote); err != nil {
				return err
			}
			b.Wait()

			if syncErr != nil {
				return fmt.Errorf("vote not saved: %w", syncErr.Err)
			}
			after, _ := b.Review(args[1])
			a.ui.Success("Marked review %s %s (%d helpful, %d not helpful)",
				shortID(after.ID), voteLabel(vote), after.HelpfulCount, after.NotHelpfulCount)
			return nil
		},
	}
}

func (a *app) reviewsReportCommand() *cobra.Command {
	var reason, description string
	cmd := &cobra.Command{
		Use:   "report <doctorId> <reviewId>",
		Short: "Report a review to the moderators",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			r, err := domain.ParseReportReason(reason)
			if err != nil {
				return err
			}

			ctx := requestContext(cmd.Context())
			b, err := a.loadBoard(ctx, args[0])
			if err != nil {
				return err
			}
			ack, err := b.ReportReview(ctx, args[1], r, description)
			if err != nil {
				return err
			}
			b.Wait()
			a.ui.Success("Thanks, your report on review %s was received at %s",
				shortID(ack.ReviewID), ack.SubmittedAt.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", string(domain.ReasonOther),
		"One of spam, fake, inappropriate, harassment, privacy-violation, other")
	cmd.Flags().StringVar(&description, "description", "", "Optional details (max 500 characters)")
	return cmd
}

func (a *app) reviewsSubmitCommand() *cobra.Command {
	var (
		doctorID, consultationID string
		channel, title, body     string
		rating                   int
		sub                      domain.SubRatings
		anonymous                bool
		positive, improvement    []string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Write a review of a consultation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			ch, err := domain.ParseChannel(channel)
			if err != nil {
				return err
			}

			form := submission.NewForm(doctorID, consultationID, a.client)
			form.SetOverallRating(rating)
			form.SetSubRatings(sub)
			form.SetTitle(title)
			form.SetBody(body)
			form.SetAnonymous(anonymous)
			form.SetChannel(ch)
			for _, tag := range positive {
				if !form.Draft().PositiveTags.Contains(tag) {
					form.TogglePositiveTag(tag)
				}
			}
			for _, tag := range improvement {
				if !form.Draft().ImprovementTags.Contains(tag) {
					form.ToggleImprovementTag(tag)
				}
			}

			created, err := form.Submit(requestContext(cmd.Context()))
			if err != nil {
				return err
			}
			a.ui.Success("Review %s submitted", shortID(created.ID))
			if created.Status != domain.StatusApproved {
				a.ui.Info("It will be published once a moderator approves it")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&doctorID, "doctor", "", "Doctor ID")
	f.StringVar(&consultationID, "consultation", "", "Consultation ID")
	f.StringVar(&channel, "channel", "", "Consultation channel: video, in-person or audio")
	f.IntVar(&rating, "rating", 0, "Overall rating (1-5)")
	f.IntVar(&sub.WaitTime, "wait-time", 0, "Wait time rating (1-5)")
	f.IntVar(&sub.BedsideManner, "bedside-manner", 0, "Bedside manner rating (1-5)")
	f.IntVar(&sub.Explanation, "explanation", 0, "Explanation rating (1-5)")
	f.StringVar(&title, "title", "", "Short headline")
	f.StringVar(&body, "body", "", "Review text (20-2000 characters)")
	f.BoolVar(&anonymous, "anonymous", false, "Hide your name on the review")
	f.StringArrayVar(&positive, "positive", nil, "Positive tag, repeatable (e.g. \"Great listener\")")
	f.StringArrayVar(&improvement, "improvement", nil, "Improvement tag, repeatable (e.g. \"Long wait time\")")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("consultation")
	return cmd
}

// ErrorMessage returns the user-facing text of err.
func ErrorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
