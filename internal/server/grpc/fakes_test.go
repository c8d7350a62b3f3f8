package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/spacetask/spacetask/internal/common"
	"github.com/spacetask/spacetask/internal/logging"
	"github.com/spacetask/spacetask/internal/server/auth"
	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/spacetask/spacetask/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const testSecret = "k"

type fakeUsers struct {
	session *services.Session
	user    *models.User
	err     error

	gotEmail string
}

func (f *fakeUsers) Signup(_ context.Context, _, email, _ string) (*services.Session, error) {
	f.gotEmail = email
	return f.session, f.err
}
func (f *fakeUsers) Login(_ context.Context, email, _ string) (*services.Session, error) {
	f.gotEmail = email
	return f.session, f.err
}
func (f *fakeUsers) Get(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := *f.user
	u.ID = id
	return &u, nil
}

type fakeTasks struct {
	task  *models.Task
	tasks []*models.Task
	err   error

	gotNew    services.NewTask
	gotPatch  models.TaskPatch
	gotActor  string
	gotUser   string
	gotStatus models.TaskStatus
	gotLimit  int
	gotOffset int
	gotRadius float64
}

func (f *fakeTasks) Create(_ context.Context, creatorID string, in services.NewTask) (*models.Task, error) {
	f.gotActor, f.gotNew = creatorID, in
	return f.task, f.err
}
func (f *fakeTasks) Get(context.Context, string) (*models.Task, error) { return f.task, f.err }
func (f *fakeTasks) List(_ context.Context, st models.TaskStatus, limit, offset int) ([]*models.Task, error) {
	f.gotStatus, f.gotLimit, f.gotOffset = st, limit, offset
	return f.tasks, f.err
}
func (f *fakeTasks) ListCreatedBy(_ context.Context, userID string) ([]*models.Task, error) {
	f.gotUser = userID
	return f.tasks, f.err
}
func (f *fakeTasks) ListCompletedBy(_ context.Context, userID string) ([]*models.Task, error) {
	f.gotUser = userID
	return f.tasks, f.err
}
func (f *fakeTasks) Update(_ context.Context, _, actorID string, patch models.TaskPatch) (*models.Task, error) {
	f.gotActor, f.gotPatch = actorID, patch
	return f.task, f.err
}
func (f *fakeTasks) Cancel(_ context.Context, _, actorID string) (*models.Task, error) {
	f.gotActor = actorID
	return f.task, f.err
}
func (f *fakeTasks) Delete(_ context.Context, _, actorID string) error {
	f.gotActor = actorID
	return f.err
}
func (f *fakeTasks) Nearby(_ context.Context, _, _, radius float64) ([]*models.Task, error) {
	f.gotRadius = radius
	return f.tasks, f.err
}

type fakeSubmissions struct {
	sub        *models.Submission
	subs       []*models.Submission
	settlement *models.Settlement
	err        error

	gotActor string
	gotNote  *string
}

func (f *fakeSubmissions) Submit(_ context.Context, _, submitterID, _ string, note *string) (*models.Submission, error) {
	f.gotActor, f.gotNote = submitterID, note
	return f.sub, f.err
}
func (f *fakeSubmissions) ListForTask(_ context.Context, _, actorID string) ([]*models.Submission, error) {
	f.gotActor = actorID
	return f.subs, f.err
}
func (f *fakeSubmissions) Accept(_ context.Context, _, actorID string) (*models.Settlement, error) {
	f.gotActor = actorID
	return f.settlement, f.err
}
func (f *fakeSubmissions) Reject(_ context.Context, _, actorID string) error {
	f.gotActor = actorID
	return f.err
}

type fakeLeaderboard struct {
	entries  []*models.LeaderboardEntry
	gotLimit int
}

func (f *fakeLeaderboard) Top(_ context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	f.gotLimit = limit
	return f.entries, nil
}

type fakeLedger struct {
	entries []*models.LedgerEntry
	gotUser string
}

func (f *fakeLedger) History(_ context.Context, userID string, _ int) ([]*models.LedgerEntry, error) {
	f.gotUser = userID
	return f.entries, nil
}

type fakeUploads struct {
	upload *services.ImageUpload
	err    error
	getErr error
}

func (f *fakeUploads) PresignImageUpload(context.Context, string, string) (*services.ImageUpload, error) {
	return f.upload, f.err
}
func (f *fakeUploads) PresignImageDownload(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return "http://get/" + key, nil
}

type fixture struct {
	users       *fakeUsers
	tasks       *fakeTasks
	submissions *fakeSubmissions
	leaderboard *fakeLeaderboard
	ledger      *fakeLedger
	uploads     *fakeUploads
	conn        *grpc.ClientConn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:       &fakeUsers{user: &models.User{UserName: "alice", CoinBalance: 200}},
		tasks:       &fakeTasks{},
		submissions: &fakeSubmissions{},
		leaderboard: &fakeLeaderboard{},
		ledger:      &fakeLedger{},
		uploads:     &fakeUploads{},
	}

	srv := NewGRPCServer("bufnet", logging.NewDiscardLogger(), Services{
		Users:       f.users,
		Tasks:       f.tasks,
		Submissions: f.submissions,
		Leaderboard: f.leaderboard,
		Ledger:      f.ledger,
		Uploads:     f.uploads,
	}, testSecret)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	f.conn = conn
	return f
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

// call invokes a SpaceTask method as userID ("" for anonymous).
func (f *fixture) call(t *testing.T, userID, method string, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if userID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, tokenFor(t, userID))
	}

	out := new(structpb.Struct)
	if err := f.conn.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
