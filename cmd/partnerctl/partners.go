package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shenikar/snap_and_send/internal/service"
)

func newCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name> <email>",
		Short: "Create a partner and print its API key",
		Long:  "Creates a partner. The API key is printed once and cannot be recovered later.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var desc *string
			if description != "" {
				desc = &description
			}
			return withPartners(cmd.Context(), func(partners service.PartnerService) error {
				partner, apiKey, err := partners.CreatePartner(cmd.Context(), args[0], args[1], desc)
				if err != nil {
					return fmt.Errorf("creating partner: %w", err)
				}
				fmt.Printf("Partner created: %s (%s)\n", partner.Name, partner.ID)
				fmt.Printf("API key: %s\n", apiKey)
				fmt.Println("Store this key now, it will not be shown again.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Partner description")

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List partners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPartners(cmd.Context(), func(partners service.PartnerService) error {
				items, err := partners.ListPartners(cmd.Context())
				if err != nil {
					return fmt.Errorf("listing partners: %w", err)
				}
				if len(items) == 0 {
					fmt.Println("No partners found.")
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tEMAIL\tACTIVE\tLAST USED")
				for _, p := range items {
					lastUsed := "never"
					if p.LastUsedAt != nil {
						lastUsed = p.LastUsedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", p.Name, p.Email, p.IsActive, lastUsed)
				}
				return w.Flush()
			})
		},
	}
}

func newSetActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: fmt.Sprintf("Mark a partner as %sd", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPartners(cmd.Context(), func(partners service.PartnerService) error {
				partner, err := partners.SetActive(cmd.Context(), args[0], active)
				if err != nil {
					return fmt.Errorf("updating partner: %w", err)
				}
				fmt.Printf("Partner %s is_active=%t\n", partner.Email, partner.IsActive)
				return nil
			})
		},
	}
}
