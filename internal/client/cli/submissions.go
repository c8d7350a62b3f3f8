package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Upload sends a local image to object storage and prints the key to use
// with submit.
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	path := args[0]

	body, err := a.readImage(path)
	if err != nil {
		return err
	}

	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	up, err := a.api.PresignUpload(ctx, filepath.Base(path))
	if err != nil {
		return err
	}
	if err := a.upload(ctx, up.URL, up.ContentType, body); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Uploaded, image key:", up.Key)
	return nil
}

func (a *App) Submit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	note := optionalText(strings.Join(args[2:], " "))

	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	s, err := a.api.SubmitProof(ctx, args[0], args[1], note)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Submitted %s, status %s\n", s.ID, s.Status)
	return nil
}

func (a *App) Submissions(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	subs, err := a.api.ListSubmissions(ctx, args[0])
	if err != nil {
		return err
	}
	printSubmissions(a.out, subs)
	return nil
}

// Accept settles the bounty of a submission on one of the caller's tasks.
func (a *App) Accept(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	s, err := a.api.AcceptSubmission(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Accepted: paid %d (bounty %d + reward %d). Your balance: %d\n",
		s.Transferred, s.Bounty, s.BaseReward, s.CreatorBalance)
	return nil
}

func (a *App) Reject(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	if err := a.api.RejectSubmission(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Rejected")
	return nil
}
