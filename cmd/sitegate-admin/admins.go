package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/sitegate/internal/data"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	apperrors "github.com/target/sitegate/internal/errors"
)

// adminStore is the slice of the admin directory the CLI manages.
type adminStore interface {
	List(ctx context.Context, limit, offset int) ([]domainauth.AdminPrincipal, error)
	Create(ctx context.Context, req data.CreateAdminRequest) (domainauth.AdminPrincipal, error)
	SetActive(ctx context.Context, email string, active bool) error
}

var _ adminStore = (*data.AdminPrincipalRepo)(nil)

func newAdminsCmd(app *adminApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admins",
		Short: "Manage administrative principals",
	}
	cmd.PersistentFlags().Duration("timeout", 30*time.Second, "abort if the command runs longer than this")
	cmd.AddCommand(
		newAdminsListCmd(app),
		newAdminsAddCmd(app),
		newAdminsSetActiveCmd(app, "disable", false),
		newAdminsSetActiveCmd(app, "enable", true),
	)
	return cmd
}

func newAdminsListCmd(app *adminApp) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List principals, including disabled ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return app.withStore(ctx, func(store adminStore) error {
				admins, err := store.List(ctx, limit, offset)
				if err != nil {
					return err
				}
				return printAdmins(cmd.OutOrStdout(), admins)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newAdminsAddCmd(app *adminApp) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add EMAIL",
		Short: "Grant administrative access to an email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return app.withStore(ctx, func(store adminStore) error {
				p, err := store.Create(ctx, data.CreateAdminRequest{Email: args[0], Role: r})
				if apperrors.IsConflict(err) {
					return fmt.Errorf("admin %s already exists", strings.ToLower(strings.TrimSpace(args[0])))
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", p.Email, p.Role)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domainauth.RoleAdmin), "role: owner, admin or editor")
	return cmd
}

func newAdminsSetActiveCmd(app *adminApp, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " EMAIL",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an existing principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return app.withStore(ctx, func(store adminStore) error {
				if err := store.SetActive(ctx, args[0], active); err != nil {
					if apperrors.IsNotFound(err) {
						return fmt.Errorf("no admin named %s", args[0])
					}
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%sd %s\n", verb, strings.ToLower(strings.TrimSpace(args[0])))
				return err
			})
		},
	}
}

func parseRole(s string) (domainauth.Role, error) {
	switch r := domainauth.Role(strings.ToLower(strings.TrimSpace(s))); r {
	case domainauth.RoleOwner, domainauth.RoleAdmin, domainauth.RoleEditor:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q (valid options: owner, admin, editor)", s)
	}
}

func printAdmins(out io.Writer, admins []domainauth.AdminPrincipal) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "EMAIL\tROLE\tACTIVE\tLAST LOGIN"); err != nil {
		return err
	}
	for _, a := range admins {
		last := "never"
		if a.LastLoginAt != nil {
			last = a.LastLoginAt.UTC().Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", a.Email, a.Role, a.IsActive, last); err != nil {
			return err
		}
	}
	return tw.Flush()
}
