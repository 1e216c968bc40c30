package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/healthapp/reviews/services/review/internal/domain"
)

func (a *app) ratingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rating <doctorId>",
		Short: "Show a doctor's rating breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := a.client.DoctorRating(requestContext(cmd.Context()), args[0])
			if err != nil {
				return err
			}

			a.ui.Distribution(rating.Distribution)
			fmt.Fprintln(a.ui.Out)

			table := a.ui.Table([]string{"Aspect", "Average"})
			_ = table.Append([]string{"Wait time", fmt.Sprintf("%.1f", rating.AvgWaitTime)})
			_ = table.Append([]string{"Bedside manner", fmt.Sprintf("%.1f", rating.AvgBedsideManner)})
			_ = table.Append([]string{"Explanation", fmt.Sprintf("%.1f", rating.AvgExplanation)})
			for _, ch := range domain.Channels {
				if cr, ok := rating.Channels[ch]; ok && cr.Count > 0 {
					_ = table.Append([]string{string(ch), fmt.Sprintf("%.1f (%d)", cr.Average, cr.Count)})
				}
			}
			_ = table.Render()

			a.ui.Info("%.0f%% of patients would recommend this doctor", rating.RecommendationRate)
			return nil
		},
	}
}
