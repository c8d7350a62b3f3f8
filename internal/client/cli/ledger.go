package cli

import "context"

func optionalLimit(args []string) (int, error) {
	switch len(args) {
	case 0:
		return 0, nil
	case 1:
		return parseIntArg(args[0])
	}
	return 0, errUsage
}

func (a *App) Board(ctx context.Context, args []string) error {
	limit, err := optionalLimit(args)
	if err != nil {
		return err
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	entries, err := a.api.Leaderboard(ctx, limit)
	if err != nil {
		return err
	}
	printLeaderboard(a.out, entries)
	return nil
}

func (a *App) History(ctx context.Context, args []string) error {
	limit, err := optionalLimit(args)
	if err != nil {
		return err
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	entries, err := a.api.LedgerHistory(ctx, limit)
	if err != nil {
		return err
	}
	printHistory(a.out, a.session.UserID, entries)
	return nil
}
