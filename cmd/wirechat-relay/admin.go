package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tk, err := opts.toolkit(cmd.Context())
			if err != nil {
				return err
			}
			defer tk.Close()
			tk.log.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var (
		email string
		admin bool
	)
	add := &cobra.Command{
		Use:   "add <username> <password>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := opts.toolkit(cmd.Context())
			if err != nil {
				return err
			}
			defer tk.Close()

			if email == "" {
				email = args[0] + "@localhost"
			}
			role := store.RoleMember
			if admin {
				role = store.RoleAdmin
			}
			user, err := tk.auth.CreateUser(cmd.Context(), args[0], email, args[1], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, role %s)\n", user.Username, user.ID, user.Role)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "email address (default <username>@localhost)")
	add.Flags().BoolVar(&admin, "admin", false, "grant the admin role")

	cmd.AddCommand(
		add,
		newBanCmd(opts, "ban", true),
		newBanCmd(opts, "unban", false),
		&cobra.Command{
			Use:   "token <username>",
			Short: "Print a signed access token for a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tk, err := opts.toolkit(cmd.Context())
				if err != nil {
					return err
				}
				defer tk.Close()

				token, err := tk.auth.IssueToken(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			},
		},
	)
	return cmd
}

func newBanCmd(opts *rootOptions, use string, banned bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: "Set the banned flag of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := opts.toolkit(cmd.Context())
			if err != nil {
				return err
			}
			defer tk.Close()

			user, err := tk.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("lookup %q: %w", args[0], err)
			}
			if err := tk.auth.SetBanned(cmd.Context(), user.ID, banned); err != nil {
				return err
			}
			tk.log.Info().Str("user", user.Username).Bool("banned", banned).Msg("user updated")
			return nil
		},
	}
}

func newGroupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage private groups",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name> <creator> [member...]",
			Short: "Create a group owned by creator",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				tk, err := opts.toolkit(cmd.Context())
				if err != nil {
					return err
				}
				defer tk.Close()

				ids, err := resolveUsers(cmd, tk, args[1:])
				if err != nil {
					return err
				}
				group, err := tk.groups.Create(cmd.Context(), ids[0], args[0], ids[1:])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created group %q (id %d)\n", group.Name, group.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add-member <group-id> <actor> <username>",
			Short: "Add username to a group on behalf of an existing member",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				groupID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || groupID <= 0 {
					return fmt.Errorf("invalid group id %q", args[0])
				}
				tk, err := opts.toolkit(cmd.Context())
				if err != nil {
					return err
				}
				defer tk.Close()

				ids, err := resolveUsers(cmd, tk, args[1:])
				if err != nil {
					return err
				}
				return tk.groups.AddMember(cmd.Context(), ids[0], groupID, ids[1])
			},
		},
	)
	return cmd
}

func resolveUsers(cmd *cobra.Command, tk *toolkit, usernames []string) ([]int64, error) {
	ids := make([]int64, 0, len(usernames))
	for _, name := range usernames {
		user, err := tk.store.GetUserByUsername(cmd.Context(), name)
		if err != nil {
			return nil, fmt.Errorf("lookup %q: %w", name, err)
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}
