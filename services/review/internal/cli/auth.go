package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) loginCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.SignIn(cmd.Context(), token); err != nil {
				return err
			}
			a.ui.Success("Signed in as %s (%s)", a.session.UserID(), roleOrDefault(a.session.Role()))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "JWT issued by the identity service")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.SignOut(cmd.Context()); err != nil {
				return err
			}
			a.ui.Success("Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.session.SignedIn() {
				a.ui.Info("Not signed in")
				return nil
			}
			a.ui.Info("%s (%s)", a.session.UserID(), roleOrDefault(a.session.Role()))
			return nil
		},
	}
}

func roleOrDefault(role string) string {
	if role == "" {
		return "patient"
	}
	return role
}
