package main

import (
	"fmt"
	"io"

	"github.com/seiixin/gunwadex/internal/contact"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/spf13/cobra"
)

func newContactCmd(a *app) *cobra.Command {
	contactCmd := &cobra.Command{
		Use:   "contact",
		Short: "Show or change the contact page settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the contact settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.kernel(cmd.Context())
			if err != nil {
				return err
			}
			settings, err := k.Contact().Settings(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(settings, func(w io.Writer) { printContact(w, settings) })
		},
	}

	var in contact.SettingsUpdate
	flags := []struct {
		name  string
		usage string
		dst   **string
	}{
		{"recipient", "Inbox that receives contact messages", &in.RecipientEmail},
		{"reply-subject", "Subject of the auto-reply", &in.ReplySubject},
		{"address", "Postal address shown on the page", &in.Address},
		{"phone", "Phone number shown on the page", &in.Phone},
		{"public-email", "Email address shown on the page", &in.PublicEmail},
		{"auto-reply", "Auto-reply body; empty disables it", &in.AutoReply},
	}

	setCmd := &cobra.Command{
		Use:     "set",
		Short:   "Change contact settings; omitted flags stay unchanged",
		Example: `  gunwadex contact set --recipient support@example.com --phone "+1 555 0100"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := false
			for _, f := range flags {
				if !cmd.Flags().Changed(f.name) {
					continue
				}
				v, _ := cmd.Flags().GetString(f.name)
				*f.dst = &v
				changed = true
			}
			if !changed {
				return fmt.Errorf("nothing to change; pass at least one flag")
			}

			k, err := a.kernel(cmd.Context())
			if err != nil {
				return err
			}
			settings, err := k.Contact().UpdateSettings(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.print(settings, func(w io.Writer) { printContact(w, settings) })
		},
	}
	for _, f := range flags {
		setCmd.Flags().String(f.name, "", f.usage)
	}

	contactCmd.AddCommand(showCmd, setCmd)
	return contactCmd
}

func printContact(w io.Writer, s *models.ContactSetting) {
	fmt.Fprintf(w, "Recipient:     %s\n", s.RecipientEmail)
	fmt.Fprintf(w, "Reply subject: %s\n", s.ReplySubject)
	fmt.Fprintf(w, "Address:       %s\n", s.Address)
	fmt.Fprintf(w, "Phone:         %s\n", s.Phone)
	fmt.Fprintf(w, "Public email:  %s\n", s.PublicEmail)
	fmt.Fprintf(w, "Auto-reply:    %t\n", s.AutoReply != "")
}
