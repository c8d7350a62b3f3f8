// Package api is the CLI's client for the SpaceTask gRPC service. Requests
// and responses travel as google.protobuf.Struct values and are decoded into
// the types of this package.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spacetask/spacetask/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type Client struct {
	conn *grpc.ClientConn

	mu          sync.RWMutex
	accessToken string
}

// New connects lazily to endpointURL. Extra options are appended after the
// defaults, so tests can swap the dialer or credentials.
func New(endpointURL string, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *Client) accessTokenInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if token := c.AccessToken(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (c *Client) call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+common.ServiceName+"/"+method, req, out); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// field decodes out[key] into a T. A missing key leaves T zero.
func field[T any](out *structpb.Struct, key string) (T, error) {
	var v T
	f, ok := out.GetFields()[key]
	if !ok {
		return v, nil
	}
	raw, err := protojson.Marshal(f)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, nil
}

func callFor[T any](c *Client, ctx context.Context, method, key string, in map[string]any) (T, error) {
	out, err := c.call(ctx, method, in)
	if err != nil {
		var zero T
		return zero, err
	}
	return field[T](out, key)
}

func optional[T any](m map[string]any, key string, p *T) {
	if p != nil {
		m[key] = *p
	}
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "Ping", nil)
	return err
}

func (c *Client) auth(ctx context.Context, method string, in map[string]any) (*Auth, error) {
	out, err := c.call(ctx, method, in)
	if err != nil {
		return nil, err
	}
	user, err := field[User](out, "user")
	if err != nil {
		return nil, err
	}
	token, err := field[string](out, "access_token")
	if err != nil {
		return nil, err
	}
	c.SetAccessToken(token)
	return &Auth{User: user, AccessToken: token}, nil
}

// Signup creates an account and keeps the returned token for later calls.
func (c *Client) Signup(ctx context.Context, userName, email, password string) (*Auth, error) {
	return c.auth(ctx, "Signup", map[string]any{"username": userName, "email": email, "password": password})
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*Auth, error) {
	return c.auth(ctx, "Login", map[string]any{"email": email, "password": password})
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	u, err := callFor[User](c, ctx, "Me", "user", nil)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns another user's public profile. Email and balance are empty.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	u, err := callFor[User](c, ctx, "GetUser", "user", map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) CreateTask(ctx context.Context, in NewTask) (*Task, error) {
	req := map[string]any{
		"title":               in.Title,
		"description":         in.Description,
		"label":               in.Label,
		"completion_criteria": in.CompletionCriteria,
		"bounty_amount":       in.BountyAmount,
		"latitude":            in.Latitude,
		"longitude":           in.Longitude,
	}
	optional(req, "location_name", in.LocationName)
	return c.task(ctx, "CreateTask", req)
}

func (c *Client) task(ctx context.Context, method string, in map[string]any) (*Task, error) {
	t, err := callFor[Task](c, ctx, method, "task", in)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	return c.task(ctx, "GetTask", map[string]any{"task_id": taskID})
}

func (c *Client) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (*Task, error) {
	req := map[string]any{"task_id": taskID}
	optional(req, "title", patch.Title)
	optional(req, "description", patch.Description)
	optional(req, "completion_criteria", patch.CompletionCriteria)
	optional(req, "bounty_amount", patch.BountyAmount)
	optional(req, "label", patch.Label)
	return c.task(ctx, "UpdateTask", req)
}

func (c *Client) CancelTask(ctx context.Context, taskID string) (*Task, error) {
	return c.task(ctx, "CancelTask", map[string]any{"task_id": taskID})
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	_, err := c.call(ctx, "DeleteTask", map[string]any{"task_id": taskID})
	return err
}

// ListTasks lists tasks by status ("" for active) with paging; zero limit
// uses the server default.
func (c *Client) ListTasks(ctx context.Context, status string, limit, offset int) ([]Task, error) {
	req := map[string]any{"offset": offset}
	if status != "" {
		req["status"] = status
	}
	if limit > 0 {
		req["limit"] = limit
	}
	return callFor[[]Task](c, ctx, "ListTasks", "tasks", req)
}

// NearbyTasks lists active tasks around a point; zero radius uses the
// server default.
func (c *Client) NearbyTasks(ctx context.Context, lat, lng, radiusKm float64) ([]Task, error) {
	req := map[string]any{"latitude": lat, "longitude": lng}
	if radiusKm != 0 {
		req["radius_km"] = radiusKm
	}
	return callFor[[]Task](c, ctx, "NearbyTasks", "tasks", req)
}

func userReq(userID string) map[string]any {
	if userID == "" {
		return nil
	}
	return map[string]any{"user_id": userID}
}

// UserTasks lists tasks created by userID, or by the caller when empty.
func (c *Client) UserTasks(ctx context.Context, userID string) ([]Task, error) {
	return callFor[[]Task](c, ctx, "UserTasks", "tasks", userReq(userID))
}

// UserCompletions lists tasks completed by userID, or by the caller when empty.
func (c *Client) UserCompletions(ctx context.Context, userID string) ([]Task, error) {
	return callFor[[]Task](c, ctx, "UserCompletions", "tasks", userReq(userID))
}

func (c *Client) SubmitProof(ctx context.Context, taskID, imageRef string, note *string) (*Submission, error) {
	req := map[string]any{"task_id": taskID, "image_ref": imageRef}
	optional(req, "note", note)
	s, err := callFor[Submission](c, ctx, "SubmitProof", "submission", req)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListSubmissions(ctx context.Context, taskID string) ([]Submission, error) {
	return callFor[[]Submission](c, ctx, "ListSubmissions", "submissions", map[string]any{"task_id": taskID})
}

func (c *Client) AcceptSubmission(ctx context.Context, submissionID string) (*Settlement, error) {
	s, err := callFor[Settlement](c, ctx, "AcceptSubmission", "settlement", map[string]any{"submission_id": submissionID})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) RejectSubmission(ctx context.Context, submissionID string) error {
	_, err := c.call(ctx, "RejectSubmission", map[string]any{"submission_id": submissionID})
	return err
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	var req map[string]any
	if limit > 0 {
		req = map[string]any{"limit": limit}
	}
	return callFor[[]LeaderboardEntry](c, ctx, "Leaderboard", "entries", req)
}

func (c *Client) LedgerHistory(ctx context.Context, limit int) ([]LedgerEntry, error) {
	var req map[string]any
	if limit > 0 {
		req = map[string]any{"limit": limit}
	}
	return callFor[[]LedgerEntry](c, ctx, "LedgerHistory", "entries", req)
}

func (c *Client) PresignUpload(ctx context.Context, fileName string) (*Upload, error) {
	out, err := c.call(ctx, "PresignUpload", map[string]any{"file_name": fileName})
	if err != nil {
		return nil, err
	}
	raw, err := protojson.Marshal(out)
	if err != nil {
		return nil, err
	}
	var up Upload
	if err := json.Unmarshal(raw, &up); err != nil {
		return nil, fmt.Errorf("decoding upload: %w", err)
	}
	return &up, nil
}
