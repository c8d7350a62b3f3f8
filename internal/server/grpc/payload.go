package grpc

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spacetask/spacetask/internal/common"
	"github.com/spacetask/spacetask/internal/server/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxExactInt is the largest integer a JSON/Struct number carries exactly.
const maxExactInt = 1 << 53

// reader pulls typed fields out of a request Struct and remembers the first
// problem it runs into. Null and absent fields are treated alike.
type reader struct {
	fields map[string]*structpb.Value
	err    error
}

func newReader(req *structpb.Struct) *reader {
	return &reader{fields: req.GetFields()}
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", common.ErrValidation, fmt.Sprintf(format, args...))
	}
}

func (r *reader) value(key string) (*structpb.Value, bool) {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func (r *reader) optString(key string) *string {
	v, ok := r.value(key)
	if !ok {
		return nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail("%s must be a string", key)
		return nil
	}
	s := sv.StringValue
	return &s
}

func (r *reader) str(key string) string {
	if p := r.optString(key); p != nil {
		return *p
	}
	return ""
}

func (r *reader) requiredString(key string) string {
	p := r.optString(key)
	if p == nil || strings.TrimSpace(*p) == "" {
		r.fail("%s is required", key)
		return ""
	}
	return *p
}

// id reads a required uuid. Anything else cannot name a row, so it is
// rejected before reaching the database.
func (r *reader) id(key string) string {
	s := r.requiredString(key)
	if s == "" {
		return ""
	}
	if _, err := uuid.Parse(s); err != nil {
		r.fail("%s must be a uuid", key)
		return ""
	}
	return s
}

// optID is id for fields that may be absent.
func (r *reader) optID(key string) string {
	s := r.str(key)
	if s == "" {
		return ""
	}
	if _, err := uuid.Parse(s); err != nil {
		r.fail("%s must be a uuid", key)
		return ""
	}
	return s
}

func (r *reader) optNumber(key string) *float64 {
	v, ok := r.value(key)
	if !ok {
		return nil
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		r.fail("%s must be a number", key)
		return nil
	}
	f := nv.NumberValue
	return &f
}

func (r *reader) number(key string) float64 {
	p := r.optNumber(key)
	if p == nil {
		r.fail("%s is required", key)
		return 0
	}
	return *p
}

func (r *reader) optInt(key string) *int64 {
	p := r.optNumber(key)
	if p == nil {
		return nil
	}
	f := *p
	if math.Trunc(f) != f || math.Abs(f) > maxExactInt {
		r.fail("%s must be an integer", key)
		return nil
	}
	n := int64(f)
	return &n
}

func (r *reader) intOr(key string, def int) int {
	if p := r.optInt(key); p != nil {
		return int(*p)
	}
	return def
}

// only rejects keys outside allowed.
func (r *reader) only(allowed ...string) {
	set := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		set[k] = true
	}
	var unknown []string
	for k := range r.fields {
		if !set[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		r.fail("unknown fields: %s", strings.Join(unknown, ", "))
	}
}

func (r *reader) Err() error {
	return r.err
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func listOf[T any](items []T, enc func(T) map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, enc(item))
	}
	return out
}

func userMap(u *models.User) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"username":     u.UserName,
		"email":        u.Email,
		"coin_balance": u.CoinBalance,
		"created_at":   timestamp(u.CreatedAt),
	}
}

// publicUserMap leaves out the email and balance.
func publicUserMap(u *models.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"username":   u.UserName,
		"created_at": timestamp(u.CreatedAt),
	}
}

func taskMap(t *models.Task) map[string]any {
	return map[string]any{
		"id":                  t.ID,
		"creator_id":          t.CreatorID,
		"creator_username":    t.CreatorName,
		"title":               t.Title,
		"description":         t.Description,
		"label":               t.Label,
		"completion_criteria": t.CompletionCriteria,
		"bounty_amount":       t.BountyAmount,
		"latitude":            t.Latitude,
		"longitude":           t.Longitude,
		"location_name":       optional(t.LocationName),
		"status":              string(t.Status),
		"created_at":          timestamp(t.CreatedAt),
		"updated_at":          timestamp(t.UpdatedAt),
	}
}

func submissionMap(s *models.Submission) map[string]any {
	var reviewedAt any
	if s.ReviewedAt != nil {
		reviewedAt = timestamp(*s.ReviewedAt)
	}
	return map[string]any{
		"id":                 s.ID,
		"task_id":            s.TaskID,
		"submitter_id":       s.SubmitterID,
		"submitter_username": s.SubmitterName,
		"image_ref":          s.ImageRef,
		"note":               optional(s.Note),
		"status":             string(s.Status),
		"submitted_at":       timestamp(s.SubmittedAt),
		"reviewed_at":        reviewedAt,
	}
}

func settlementMap(s *models.Settlement) map[string]any {
	return map[string]any{
		"submission_id":     s.SubmissionID,
		"task_id":           s.TaskID,
		"creator_id":        s.CreatorID,
		"submitter_id":      s.SubmitterID,
		"bounty":            s.Bounty,
		"base_reward":       s.BaseReward,
		"transferred":       s.Transferred(),
		"creator_balance":   s.CreatorBalance,
		"submitter_balance": s.SubmitterBalance,
	}
}

func leaderboardMap(e *models.LeaderboardEntry) map[string]any {
	return map[string]any{
		"user_id":         e.UserID,
		"username":        e.UserName,
		"coin_balance":    e.CoinBalance,
		"completed_tasks": e.CompletedTasks,
	}
}

func ledgerEntryMap(e *models.LedgerEntry) map[string]any {
	return map[string]any{
		"id":           e.ID,
		"from_user_id": optional(e.FromUserID),
		"to_user_id":   e.ToUserID,
		"amount":       e.Amount,
		"type":         string(e.Type),
		"task_id":      optional(e.TaskID),
		"description":  e.Description,
		"created_at":   timestamp(e.CreatedAt),
	}
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: encoding response: %v", common.ErrorInternal, err))
	}
	return out, nil
}
