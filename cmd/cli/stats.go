package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the admin dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.kernel(cmd.Context())
			if err != nil {
				return err
			}
			st, err := k.Moderation().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(st, func(w io.Writer) {
				fmt.Fprintf(w, "Users:                 %d (%d banned)\n", st.Users, st.BannedUsers)
				fmt.Fprintf(w, "Stories:               %d\n", st.Stories)
				fmt.Fprintf(w, "Episodes:              %d\n", st.Episodes)
				fmt.Fprintf(w, "Articles:              %d\n", st.Articles)
				fmt.Fprintf(w, "Comments:              %d (%d hidden)\n", st.Comments, st.HiddenComments)
				fmt.Fprintf(w, "Open conversations:    %d\n", st.OpenConversations)
				fmt.Fprintf(w, "Unread conversations:  %d\n", st.UnreadConversations)
			})
		},
	}
}
