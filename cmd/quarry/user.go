package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keithlinneman/quarry/internal/auth"
	"github.com/keithlinneman/quarry/internal/cfg"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/store"
)

func newUserCmd(conf *cfg.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage panel accounts",
	}
	cmd.AddCommand(newUserAddCmd(conf), newUserListCmd(conf))
	return cmd
}

func newUserAddCmd(conf *cfg.App) *cobra.Command {
	var (
		email    string
		name     string
		role     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Create a panel account",
		Long: `Creates users/<id>/user.txt in the project directory. The password may
be passed with --password or the QUARRY_USER_PASSWORD environment
variable; the account stores only a bcrypt hash.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("QUARRY_USER_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("a password is required (--password or QUARRY_USER_PASSWORD)")
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			normalized, err := auth.NormalizeEmail(email)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			snap, st, err := openProject(cmd.Context(), conf)
			if err != nil {
				return err
			}
			in := store.CreateUserInput{
				Id:           args[0],
				Email:        normalized,
				Name:         name,
				Role:         role,
				PasswordHash: hash,
			}
			if err := st.CreateUser(cmd.Context(), snap, in); err != nil {
				return err
			}
			fmt.Printf("created user %s (%s, role=%s)\n", args[0], normalized, role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "editor", "account role (admin|editor)")
	cmd.Flags().StringVar(&password, "password", "", "plaintext password (hashed before storing)")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCmd(conf *cfg.App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List panel accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, _, err := openProject(cmd.Context(), conf)
			if err != nil {
				return err
			}
			for _, u := range snap.Users {
				fmt.Printf("%s\t%s\t%s\n", u.Id(), u.Email(), u.Role())
			}
			return nil
		},
	}
}

// openProject loads the project once for a one-shot CLI operation.
func openProject(ctx context.Context, conf *cfg.App) (*model.Snapshot, *store.Store, error) {
	loader := model.NewLoader(os.DirFS(conf.ProjectDir), model.LoadOptions{BaseURL: conf.BaseURL})
	snap, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading project %s: %w", conf.ProjectDir, err)
	}
	st, err := store.New(conf.ProjectDir, nil)
	if err != nil {
		return nil, nil, err
	}
	return snap, st, nil
}
