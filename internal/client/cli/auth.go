package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/progres-gateway/internal/client/client"
	"github.com/dmitrijs2005/progres-gateway/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login authenticates with the username from args or, when absent, from a
// prompt. The password is always prompted without echo and wiped afterwards.
func (a *App) Login(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: %s", errUsage, loginUsage)
	}

	var userName string
	if len(args) == 1 {
		userName = args[0]
	} else {
		var err error
		if userName, err = getSimpleText(a.reader, "Enter username", a.out); err != nil {
			return err
		}
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.Login(ctx, userName, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Fprintf(a.out, "Login successful (%s)\n", a.api.Session().Subject)
	return nil
}

func (a *App) Refresh(ctx context.Context, _ []string) error {
	if err := a.api.Refresh(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return fmt.Errorf("session expired, please log in again: %w", err)
		}
		return err
	}
	fmt.Fprintln(a.out, "Token refreshed successfully")
	return nil
}

// Logout always forgets the local session; a server error is only reported.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.api.Logout(ctx); err != nil {
		fmt.Fprintf(a.out, "warning: server logout failed: %v\n", err)
	}
	fmt.Fprintln(a.out, "Logged out successfully")
	return nil
}
