package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewAdminCmd groups account maintenance commands.
func NewAdminCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Account maintenance",
	}
	cmd.AddCommand(newAdminUsersCmd(root), newAdminQuotaCmd(root))
	return cmd
}

func newAdminUsersCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List accounts and their remaining query quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.Repos.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tEMAIL\tQUOTA\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", u.Username, u.Email, u.QueryQuota, u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

func newAdminQuotaCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "quota USER N",
		Short:   "Set a user's remaining query quota",
		Args:    cobra.ExactArgs(2),
		Example: `  ragchat admin quota alice 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				return fmt.Errorf("quota must be a non-negative integer, got %q", args[1])
			}
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Repos.Users.SetQuota(cmd.Context(), args[0], n); err != nil {
				return fmt.Errorf("set quota for %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: quota set to %d\n", args[0], n)
			return nil
		},
	}
}
