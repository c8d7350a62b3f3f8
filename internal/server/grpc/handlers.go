package grpc

import (
	"context"

	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/spacetask/spacetask/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// fail converts err for the wire, logging the original when the client
// only gets a generic Internal.
func (s *GRPCServer) fail(ctx context.Context, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, "request failed", "error", err)
	}
	return st
}

func (s *GRPCServer) ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return reply(map[string]any{"status": "OK"})
}

func (s *GRPCServer) sessionReply(sess *services.Session) (*structpb.Struct, error) {
	return reply(map[string]any{
		"user":         userMap(sess.User),
		"access_token": sess.AccessToken,
	})
}

func (s *GRPCServer) signup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	userName, email, password := r.requiredString("username"), r.requiredString("email"), r.requiredString("password")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	sess, err := s.svc.Users.Signup(ctx, userName, email, password)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return s.sessionReply(sess)
}

func (s *GRPCServer) login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	email, password := r.requiredString("email"), r.requiredString("password")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	sess, err := s.svc.Users.Login(ctx, email, password)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return s.sessionReply(sess)
}

func (s *GRPCServer) me(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.svc.Users.Get(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"user": userMap(user)})
}

// getUser returns the public profile of any user.
func (s *GRPCServer) getUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	userID := r.id("user_id")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	user, err := s.svc.Users.Get(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"user": publicUserMap(user)})
}

func (s *GRPCServer) createTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	in := services.NewTask{
		Title:              r.str("title"),
		Description:        r.str("description"),
		Label:              r.str("label"),
		CompletionCriteria: r.str("completion_criteria"),
		Latitude:           r.number("latitude"),
		Longitude:          r.number("longitude"),
		LocationName:       r.optString("location_name"),
	}
	if bounty := r.optInt("bounty_amount"); bounty != nil {
		in.BountyAmount = *bounty
	}
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	task, err := s.svc.Tasks.Create(ctx, userID, in)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"task": taskMap(task)})
}

func (s *GRPCServer) getTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	taskID := r.id("task_id")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	task, err := s.svc.Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"task": taskMap(task)})
}

func (s *GRPCServer) tasksReply(ctx context.Context, tasks []*models.Task, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"tasks": listOf(tasks, taskMap)})
}

func (s *GRPCServer) listTasks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	statusFilter := models.TaskStatus(r.str("status"))
	limit, offset := r.intOr("limit", 0), r.intOr("offset", 0)
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	tasks, err := s.svc.Tasks.List(ctx, statusFilter, limit, offset)
	return s.tasksReply(ctx, tasks, err)
}

var taskPatchFields = []string{"task_id", "title", "description", "completion_criteria", "bounty_amount", "label"}

func (s *GRPCServer) updateTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	r.only(taskPatchFields...)
	taskID := r.id("task_id")
	patch := models.TaskPatch{
		Title:              r.optString("title"),
		Description:        r.optString("description"),
		CompletionCriteria: r.optString("completion_criteria"),
		BountyAmount:       r.optInt("bounty_amount"),
		Label:              r.optString("label"),
	}
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	task, err := s.svc.Tasks.Update(ctx, taskID, userID, patch)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"task": taskMap(task)})
}

func (s *GRPCServer) cancelTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	taskID := r.id("task_id")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	task, err := s.svc.Tasks.Cancel(ctx, taskID, userID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"task": taskMap(task)})
}

func (s *GRPCServer) deleteTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	taskID := r.id("task_id")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	if err := s.svc.Tasks.Delete(ctx, taskID, userID); err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"deleted": true})
}

func (s *GRPCServer) nearbyTasks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	lat, lng := r.number("latitude"), r.number("longitude")
	var radius float64
	if p := r.optNumber("radius_km"); p != nil {
		radius = *p
	}
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	tasks, err := s.svc.Tasks.Nearby(ctx, lat, lng, radius)
	return s.tasksReply(ctx, tasks, err)
}

func (s *GRPCServer) submitProof(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	taskID := r.id("task_id")
	imageRef := r.str("image_ref")
	note := r.optString("note")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	sub, err := s.svc.Submissions.Submit(ctx, taskID, userID, imageRef, note)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"submission": submissionMap(sub)})
}

// listSubmissions attaches a short-lived download URL to every proof. A
// presign failure leaves image_url empty rather than failing the listing.
func (s *GRPCServer) listSubmissions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	taskID := r.id("task_id")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	subs, err := s.svc.Submissions.ListForTask(ctx, taskID, userID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	items := make([]any, 0, len(subs))
	for _, sub := range subs {
		m := submissionMap(sub)
		url, err := s.svc.Uploads.PresignImageDownload(ctx, sub.ImageRef)
		if err != nil {
			s.logger.Warn(ctx, "presign download failed", "submission_id", sub.ID, "error", err)
			url = ""
		}
		m["image_url"] = url
		items = append(items, m)
	}
	return reply(map[string]any{"submissions": items})
}

func (s *GRPCServer) acceptSubmission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	submissionID := r.id("submission_id")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	settlement, err := s.svc.Submissions.Accept(ctx, submissionID, userID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"settlement": settlementMap(settlement)})
}

func (s *GRPCServer) rejectSubmission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	submissionID := r.id("submission_id")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	if err := s.svc.Submissions.Reject(ctx, submissionID, userID); err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"rejected": true})
}

func (s *GRPCServer) leaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	limit := r.intOr("limit", 0)
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	entries, err := s.svc.Leaderboard.Top(ctx, limit)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"entries": listOf(entries, leaderboardMap)})
}

func (s *GRPCServer) ledgerHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	limit := r.intOr("limit", 0)
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	entries, err := s.svc.Ledger.History(ctx, userID, limit)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{"entries": listOf(entries, ledgerEntryMap)})
}

func (s *GRPCServer) presignUpload(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r := newReader(req)
	fileName := r.requiredString("file_name")
	if err := r.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	up, err := s.svc.Uploads.PresignImageUpload(ctx, userID, fileName)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return reply(map[string]any{
		"key":          up.Key,
		"url":          up.URL,
		"content_type": up.ContentType,
		"expires_at":   timestamp(up.ExpiresAt),
	})
}

// targetUser is the user_id in the request, or the caller when absent.
func targetUser(ctx context.Context, req *structpb.Struct) (string, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	r := newReader(req)
	if other := r.optID("user_id"); other != "" {
		userID = other
	}
	return userID, r.Err()
}

func (s *GRPCServer) userTasks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := targetUser(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	tasks, err := s.svc.Tasks.ListCreatedBy(ctx, userID)
	return s.tasksReply(ctx, tasks, err)
}

func (s *GRPCServer) userCompletions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := targetUser(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	tasks, err := s.svc.Tasks.ListCompletedBy(ctx, userID)
	return s.tasksReply(ctx, tasks, err)
}
