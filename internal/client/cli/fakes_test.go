package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spacetask/spacetask/internal/client/api"
	"github.com/spacetask/spacetask/internal/client/config"
	"github.com/spacetask/spacetask/internal/client/session"
)

type fakeAPI struct {
	calls []string
	token string
	err   error

	auth        *api.Auth
	user        *api.User
	task        *api.Task
	tasks       []api.Task
	subs        []api.Submission
	settlement  *api.Settlement
	entries     []api.LeaderboardEntry
	history     []api.LedgerEntry
	uploadReply *api.Upload

	gotEmail, gotPassword string
	gotNew                api.NewTask
	gotPatch              api.TaskPatch
	gotArgs               []any
	pingErr               error
}

func (f *fakeAPI) record(name string, args ...any) {
	f.calls = append(f.calls, name)
	f.gotArgs = args
}

func (f *fakeAPI) Ping(context.Context) error { return f.pingErr }
func (f *fakeAPI) SetAccessToken(token string) { f.token = token }
func (f *fakeAPI) Close() error                { return nil }

func (f *fakeAPI) Signup(_ context.Context, userName, email, password string) (*api.Auth, error) {
	f.record("Signup", userName)
	f.gotEmail, f.gotPassword = email, password
	return f.auth, f.err
}
func (f *fakeAPI) Login(_ context.Context, email, password string) (*api.Auth, error) {
	f.record("Login")
	f.gotEmail, f.gotPassword = email, password
	return f.auth, f.err
}
func (f *fakeAPI) Me(context.Context) (*api.User, error) { f.record("Me"); return f.user, f.err }
func (f *fakeAPI) GetUser(_ context.Context, id string) (*api.User, error) {
	f.record("GetUser", id)
	return f.user, f.err
}
func (f *fakeAPI) CreateTask(_ context.Context, in api.NewTask) (*api.Task, error) {
	f.record("CreateTask")
	f.gotNew = in
	return f.task, f.err
}
func (f *fakeAPI) GetTask(_ context.Context, id string) (*api.Task, error) {
	f.record("GetTask", id)
	return f.task, f.err
}
func (f *fakeAPI) UpdateTask(_ context.Context, id string, p api.TaskPatch) (*api.Task, error) {
	f.record("UpdateTask", id)
	f.gotPatch = p
	return f.task, f.err
}
func (f *fakeAPI) CancelTask(_ context.Context, id string) (*api.Task, error) {
	f.record("CancelTask", id)
	return f.task, f.err
}
func (f *fakeAPI) DeleteTask(_ context.Context, id string) error {
	f.record("DeleteTask", id)
	return f.err
}
func (f *fakeAPI) ListTasks(_ context.Context, status string, limit, offset int) ([]api.Task, error) {
	f.record("ListTasks", status, limit, offset)
	return f.tasks, f.err
}
func (f *fakeAPI) NearbyTasks(_ context.Context, lat, lng, r float64) ([]api.Task, error) {
	f.record("NearbyTasks", lat, lng, r)
	return f.tasks, f.err
}
func (f *fakeAPI) UserTasks(_ context.Context, id string) ([]api.Task, error) {
	f.record("UserTasks", id)
	return f.tasks, f.err
}
func (f *fakeAPI) UserCompletions(_ context.Context, id string) ([]api.Task, error) {
	f.record("UserCompletions", id)
	return f.tasks, f.err
}
func (f *fakeAPI) SubmitProof(_ context.Context, taskID, imageRef string, note *string) (*api.Submission, error) {
	f.record("SubmitProof", taskID, imageRef, note)
	return &api.Submission{ID: "s1", Status: "pending"}, f.err
}
func (f *fakeAPI) ListSubmissions(_ context.Context, taskID string) ([]api.Submission, error) {
	f.record("ListSubmissions", taskID)
	return f.subs, f.err
}
func (f *fakeAPI) AcceptSubmission(_ context.Context, id string) (*api.Settlement, error) {
	f.record("AcceptSubmission", id)
	return f.settlement, f.err
}
func (f *fakeAPI) RejectSubmission(_ context.Context, id string) error {
	f.record("RejectSubmission", id)
	return f.err
}
func (f *fakeAPI) Leaderboard(_ context.Context, limit int) ([]api.LeaderboardEntry, error) {
	f.record("Leaderboard", limit)
	return f.entries, f.err
}
func (f *fakeAPI) LedgerHistory(_ context.Context, limit int) ([]api.LedgerEntry, error) {
	f.record("LedgerHistory", limit)
	return f.history, f.err
}
func (f *fakeAPI) PresignUpload(_ context.Context, name string) (*api.Upload, error) {
	f.record("PresignUpload", name)
	return f.uploadReply, f.err
}

type fakeStore struct {
	saved   *session.Session
	loadErr error
	cleared bool
}

func (s *fakeStore) Load(context.Context) (*session.Session, error) { return s.saved, s.loadErr }
func (s *fakeStore) Save(_ context.Context, sess session.Session) error {
	s.saved = &sess
	return nil
}
func (s *fakeStore) Clear(context.Context) error { s.saved, s.cleared = nil, true; return nil }
func (s *fakeStore) Close() error                { return nil }

// newTestApp builds an App reading input and writing to the returned buffer.
func newTestApp(t *testing.T, f *fakeAPI, store *fakeStore, input string) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	c := &config.Config{}
	c.LoadDefaults()
	c.OnlineCheckInterval = 0
	a := newApp(c, f, store, strings.NewReader(input), out)
	return a, out
}

func loggedIn(a *App) {
	a.session = &session.Session{UserID: "u1", UserName: "alice", AccessToken: "tok"}
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}
