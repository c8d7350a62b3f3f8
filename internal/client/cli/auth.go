package cli

import (
	"context"
	"fmt"

	"github.com/spacetask/spacetask/internal/client/api"
	"github.com/spacetask/spacetask/internal/client/session"
	"github.com/spacetask/spacetask/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// remember stores a fresh login locally so the next run starts logged in.
func (a *App) remember(ctx context.Context, auth *api.Auth) error {
	sess := session.Session{UserID: auth.User.ID, UserName: auth.User.UserName, AccessToken: auth.AccessToken}
	if err := a.store.Save(ctx, sess); err != nil {
		return err
	}
	a.session = &sess
	a.api.SetAccessToken(auth.AccessToken)
	fmt.Fprintf(a.out, "Logged in as %s, balance %d\n", auth.User.UserName, auth.User.CoinBalance)
	return nil
}

// Register prompts for a user name, email and password, creates the account
// and logs in with it.
func (a *App) Register(ctx context.Context, _ []string) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	auth, err := a.api.Signup(ctx, userName, email, string(password))
	if err != nil {
		return err
	}
	return a.remember(ctx, auth)
}

// Login prompts for credentials and replaces any remembered session.
func (a *App) Login(ctx context.Context, _ []string) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	auth, err := a.api.Login(ctx, email, string(password))
	if err != nil {
		return err
	}
	return a.remember(ctx, auth)
}

// Logout forgets the local session.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	a.session = nil
	a.api.SetAccessToken("")
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// User shows another user's public profile.
func (a *App) User(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	u, err := a.api.GetUser(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n  id: %s\n  joined: %s\n", u.UserName, u.ID, u.CreatedAt)
	return nil
}

func (a *App) Me(ctx context.Context, _ []string) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	u, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	printUser(a.out, u)
	return nil
}
