package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/moderation"
	"github.com/seiixin/gunwadex/internal/util"
	"github.com/spf13/cobra"
)

func newUsersCmd(a *app) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "List and moderate accounts",
	}

	var (
		query  string
		role   string
		banned string
		limit  int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		Example: `  gunwadex users list --role admin
  gunwadex users list --q alice --banned false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := moderation.UserFilter{Query: query}
			if role != "" {
				r, ok := models.ParseRole(role)
				if !ok {
					return fmt.Errorf("role must be user, author or admin")
				}
				filter.Role = r
			}
			if banned != "" {
				b, err := strconv.ParseBool(banned)
				if err != nil {
					return fmt.Errorf("--banned must be true or false")
				}
				filter.Banned = &b
			}

			k, err := a.kernel(cmd.Context())
			if err != nil {
				return err
			}
			users, total, err := k.Moderation().ListUsers(cmd.Context(), filter, util.NewPage(limit, 0))
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{"items": users, "total": total}, func(w io.Writer) {
				printUsers(w, users, total)
			})
		},
	}
	listCmd.Flags().StringVar(&query, "q", "", "Match username or email")
	listCmd.Flags().StringVar(&role, "role", "", "Filter by role")
	listCmd.Flags().StringVar(&banned, "banned", "", "Filter by ban state (true|false)")
	listCmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of results")

	roleCmd := &cobra.Command{
		Use:   "role <user> <user|author|admin>",
		Short: "Change a user's role",
		Long:  "Change a user's role. <user> is an id, username or email.",
		Example: `  gunwadex users role alice admin`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := models.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("role must be user, author or admin")
			}
			return a.moderate(cmd, args[0], func(m *moderation.Service, id string) (*models.User, error) {
				return m.SetRole(cmd.Context(), "", id, r)
			})
		},
	}

	var reason string
	banCmd := &cobra.Command{
		Use:   "ban <user>",
		Short: "Ban a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.moderate(cmd, args[0], func(m *moderation.Service, id string) (*models.User, error) {
				return m.Ban(cmd.Context(), "", id, reason)
			})
		},
	}
	banCmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the account")

	unbanCmd := &cobra.Command{
		Use:   "unban <user>",
		Short: "Lift a user's ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.moderate(cmd, args[0], func(m *moderation.Service, id string) (*models.User, error) {
				return m.Unban(cmd.Context(), "", id)
			})
		},
	}

	usersCmd.AddCommand(listCmd, roleCmd, banCmd, unbanCmd)
	return usersCmd
}

// moderate resolves ref to a user, applies fn and prints the result
func (a *app) moderate(cmd *cobra.Command, ref string, fn func(m *moderation.Service, id string) (*models.User, error)) error {
	k, err := a.kernel(cmd.Context())
	if err != nil {
		return err
	}
	user, err := k.Moderation().FindUser(cmd.Context(), ref)
	if err != nil {
		return err
	}
	updated, err := fn(k.Moderation(), user.ID)
	if err != nil {
		return err
	}
	return a.print(updated, func(w io.Writer) {
		printUsers(w, []models.User{*updated}, 1)
	})
}

func printUsers(w io.Writer, users []models.User, total int64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE\tBANNED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Email, u.Role, u.IsBanned)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d of %d users\n", len(users), total)
}
