// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"codeberg.org/oliverandrich/go-accounts/internal/repository"
	authsvc "codeberg.org/oliverandrich/go-accounts/internal/services/auth"
	"codeberg.org/oliverandrich/go-accounts/internal/services/email"
	"github.com/urfave/cli/v3"
)

// CreateSuperuser creates an active staff superuser from the "email" and
// "password" flags.
func CreateSuperuser(ctx context.Context, cmd *cli.Command) error {
	cfg, _, repo, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer repo.DB().Close()

	signer, err := NewSigner(&cfg.Signing)
	if err != nil {
		return err
	}
	svc, err := newAuthService(cfg, repo, signer, email.NewConsoleSender(nil))
	if err != nil {
		return err
	}

	user, err := svc.CreateSuperuser(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		var pvErr *authsvc.PasswordValidationError
		if errors.As(err, &pvErr) {
			return fmt.Errorf("invalid password: %w", err)
		}
		return err
	}

	slog.Info("superuser created", "id", user.ID, "email", user.Email)
	return nil
}

// ListUsers prints all accounts, newest first.
func ListUsers(ctx context.Context, cmd *cli.Command) error {
	_, _, repo, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer repo.DB().Close()

	return writeUsers(ctx, cmd.Root().Writer, repo)
}

func writeUsers(ctx context.Context, w io.Writer, repo *repository.Repository) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tACTIVE\tSTAFF\tSUPERUSER\tJOINED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%t\t%s\n",
			u.ID, u.Email, u.IsActive, u.IsStaff, u.IsSuperuser, u.DateJoined.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
