package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spacetask/spacetask/internal/client/api"
)

func parseFloatArg(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, s)
	}
	return f, nil
}

func parseIntArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", errUsage, s)
	}
	return n, nil
}

// Tasks lists tasks by status, active by default.
func (a *App) Tasks(ctx context.Context, args []string) error {
	if len(args) > 3 {
		return errUsage
	}
	var (
		status        string
		limit, offset int
		err           error
	)
	if len(args) > 0 {
		status = args[0]
	}
	if len(args) > 1 {
		if limit, err = parseIntArg(args[1]); err != nil {
			return err
		}
	}
	if len(args) > 2 {
		if offset, err = parseIntArg(args[2]); err != nil {
			return err
		}
	}

	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	tasks, err := a.api.ListTasks(ctx, status, limit, offset)
	if err != nil {
		return err
	}
	printTasks(a.out, tasks)
	return nil
}

func (a *App) Nearby(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	lat, err := parseFloatArg(args[0])
	if err != nil {
		return err
	}
	lng, err := parseFloatArg(args[1])
	if err != nil {
		return err
	}
	var radius float64
	if len(args) == 3 {
		if radius, err = parseFloatArg(args[2]); err != nil {
			return err
		}
	}

	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	tasks, err := a.api.NearbyTasks(ctx, lat, lng, radius)
	if err != nil {
		return err
	}
	printTasks(a.out, tasks)
	return nil
}

func optionalUser(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	}
	return "", errUsage
}

func (a *App) Created(ctx context.Context, args []string) error {
	userID, err := optionalUser(args)
	if err != nil {
		return err
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	tasks, err := a.api.UserTasks(ctx, userID)
	if err != nil {
		return err
	}
	printTasks(a.out, tasks)
	return nil
}

func (a *App) Completed(ctx context.Context, args []string) error {
	userID, err := optionalUser(args)
	if err != nil {
		return err
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	tasks, err := a.api.UserCompletions(ctx, userID)
	if err != nil {
		return err
	}
	printTasks(a.out, tasks)
	return nil
}

// taskAction runs fn for commands taking exactly one task id.
func (a *App) taskAction(ctx context.Context, args []string, fn func(ctx context.Context, taskID string) (*api.Task, error)) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	t, err := fn(ctx, args[0])
	if err != nil {
		return err
	}
	printTask(a.out, t)
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	return a.taskAction(ctx, args, a.api.GetTask)
}

func (a *App) Cancel(ctx context.Context, args []string) error {
	return a.taskAction(ctx, args, a.api.CancelTask)
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	if err := a.api.DeleteTask(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

// Create prompts for every task field and posts the task.
func (a *App) Create(ctx context.Context, _ []string) error {
	var in api.NewTask
	var err error

	if in.Title, err = getSimpleText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if in.Description, err = GetMultiline(a.reader, "Description", a.out); err != nil {
		return err
	}
	if in.Label, err = getSimpleText(a.reader, "Label (optional)", a.out); err != nil {
		return err
	}
	if in.CompletionCriteria, err = getSimpleText(a.reader, "Completion criteria", a.out); err != nil {
		return err
	}
	if in.BountyAmount, err = GetInt(a.reader, "Bounty (coins)", a.out); err != nil {
		return err
	}
	if in.Latitude, err = GetFloat(a.reader, "Latitude", a.out); err != nil {
		return err
	}
	if in.Longitude, err = GetFloat(a.reader, "Longitude", a.out); err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Location name (optional)", a.out)
	if err != nil {
		return err
	}
	in.LocationName = optionalText(name)

	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	t, err := a.api.CreateTask(ctx, in)
	if err != nil {
		return err
	}
	printTask(a.out, t)
	return nil
}

// Update prompts for each editable field; empty input keeps the current value.
func (a *App) Update(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	var patch api.TaskPatch
	prompts := []struct {
		label string
		dst   **string
	}{
		{"New title", &patch.Title},
		{"New description", &patch.Description},
		{"New completion criteria", &patch.CompletionCriteria},
		{"New label", &patch.Label},
	}
	for _, p := range prompts {
		s, err := getSimpleText(a.reader, p.label+" (empty keeps current)", a.out)
		if err != nil {
			return err
		}
		*p.dst = optionalText(s)
	}

	bounty, err := getSimpleText(a.reader, "New bounty (empty keeps current)", a.out)
	if err != nil {
		return err
	}
	if bounty != "" {
		n, err := strconv.ParseInt(bounty, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a whole number", errUsage, bounty)
		}
		patch.BountyAmount = &n
	}

	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	t, err := a.api.UpdateTask(ctx, args[0], patch)
	if err != nil {
		return err
	}
	printTask(a.out, t)
	return nil
}
