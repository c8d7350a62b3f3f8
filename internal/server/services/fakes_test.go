package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spacetask/spacetask/internal/common"
	"github.com/spacetask/spacetask/internal/dbx"
	"github.com/spacetask/spacetask/internal/logging"
	"github.com/spacetask/spacetask/internal/server/models"
	ledgerrepo "github.com/spacetask/spacetask/internal/server/repositories/ledger"
	submissionsrepo "github.com/spacetask/spacetask/internal/server/repositories/submissions"
	tasksrepo "github.com/spacetask/spacetask/internal/server/repositories/tasks"
	usersrepo "github.com/spacetask/spacetask/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func nopLogger() logging.Logger { return logging.NewDiscardLogger() }

// memStore is an in-memory stand-in for the four repositories. Transactions
// are not simulated: tests assert on Begin/Commit/Rollback through sqlmock.
type memStore struct {
	users  map[string]*models.User
	tasks  map[string]*models.Task
	subs   map[string]*models.Submission
	ledger []*models.LedgerEntry

	// fail makes the named method return the error, e.g. "Users.AddBalance".
	fail map[string]error
	// lostRace makes SetStatus CAS calls report no matching row.
	lostRace map[string]bool

	seq   int
	clock time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*models.User{},
		tasks:    map[string]*models.Task{},
		subs:     map[string]*models.Submission{},
		fail:     map[string]error{},
		lostRace: map[string]bool{},
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) next(prefix string) (string, time.Time) {
	m.seq++
	m.clock = m.clock.Add(time.Second)
	return fmt.Sprintf("%s-%d", prefix, m.seq), m.clock
}

func (m *memStore) addUser(id, name string, balance int64) *models.User {
	u := &models.User{ID: id, UserName: name, Email: name + "@example.com", CoinBalance: balance}
	m.users[id] = u
	return u
}

func (m *memStore) addTask(id, creatorID string, bounty int64, status models.TaskStatus) *models.Task {
	_, ts := m.next("t")
	t := &models.Task{
		ID: id, CreatorID: creatorID, Title: "t", Description: "d", CompletionCriteria: "c",
		BountyAmount: bounty, Status: status, CreatedAt: ts, UpdatedAt: ts,
	}
	m.tasks[id] = t
	return t
}

func (m *memStore) addSubmission(id, taskID, submitterID string, status models.SubmissionStatus) *models.Submission {
	_, ts := m.next("s")
	s := &models.Submission{ID: id, TaskID: taskID, SubmitterID: submitterID, ImageRef: "img", Status: status, SubmittedAt: ts}
	m.subs[id] = s
	return s
}

type fakeRepoManager struct{ s *memStore }

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return &memUsers{f.s} }
func (f *fakeRepoManager) Tasks(dbx.DBTX) tasksrepo.Repository          { return &memTasks{f.s} }
func (f *fakeRepoManager) Submissions(dbx.DBTX) submissionsrepo.Repository {
	return &memSubmissions{f.s}
}
func (f *fakeRepoManager) Ledger(dbx.DBTX) ledgerrepo.Repository { return &memLedger{f.s} }

// --- users ---

type memUsers struct{ s *memStore }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if err := r.s.fail["Users.Create"]; err != nil {
		return nil, err
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email || existing.UserName == u.UserName {
			return nil, common.ErrAlreadyExists
		}
	}
	id, ts := r.s.next("u")
	cp := *u
	cp.ID, cp.CreatedAt, cp.UpdatedAt = id, ts, ts
	r.s.users[id] = &cp
	return &cp, nil
}

func (r *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if err := r.s.fail["Users.GetByID"]; err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if err := r.s.fail["Users.GetByEmail"]; err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) GetBalance(_ context.Context, id string) (int64, error) {
	if err := r.s.fail["Users.GetBalance"]; err != nil {
		return 0, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return u.CoinBalance, nil
}

func (r *memUsers) LockBalances(_ context.Context, ids ...string) (map[string]int64, error) {
	if err := r.s.fail["Users.LockBalances"]; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		u, ok := r.s.users[id]
		if !ok {
			return nil, common.ErrorNotFound
		}
		out[id] = u.CoinBalance
	}
	return out, nil
}

func (r *memUsers) AddBalance(_ context.Context, id string, delta int64) (int64, error) {
	if err := r.s.fail["Users.AddBalance"]; err != nil {
		return 0, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	if u.CoinBalance+delta < 0 {
		return 0, common.ErrInsufficientFunds
	}
	u.CoinBalance += delta
	return u.CoinBalance, nil
}

func (r *memUsers) Leaderboard(_ context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	if err := r.s.fail["Users.Leaderboard"]; err != nil {
		return nil, err
	}
	var out []*models.LeaderboardEntry
	for _, u := range r.s.users {
		var completed int64
		for _, sub := range r.s.subs {
			if sub.SubmitterID == u.ID && sub.Status == models.SubmissionStatusAccepted {
				completed++
			}
		}
		out = append(out, &models.LeaderboardEntry{UserID: u.ID, UserName: u.UserName, CoinBalance: u.CoinBalance, CompletedTasks: completed})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CoinBalance != b.CoinBalance {
			return a.CoinBalance > b.CoinBalance
		}
		if a.CompletedTasks != b.CompletedTasks {
			return a.CompletedTasks > b.CompletedTasks
		}
		return a.UserName < b.UserName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- tasks ---

type memTasks struct{ s *memStore }

func (r *memTasks) Create(_ context.Context, t *models.Task) (*models.Task, error) {
	if err := r.s.fail["Tasks.Create"]; err != nil {
		return nil, err
	}
	id, ts := r.s.next("task")
	cp := *t
	cp.ID, cp.Status, cp.CreatedAt, cp.UpdatedAt = id, models.TaskStatusActive, ts, ts
	r.s.tasks[id] = &cp
	out := cp
	return &out, nil
}

func (r *memTasks) get(method, id string) (*models.Task, error) {
	if err := r.s.fail[method]; err != nil {
		return nil, err
	}
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTasks) GetByID(_ context.Context, id string) (*models.Task, error) {
	return r.get("Tasks.GetByID", id)
}

func (r *memTasks) GetForUpdate(_ context.Context, id string) (*models.Task, error) {
	return r.get("Tasks.GetForUpdate", id)
}

func (r *memTasks) GetForShare(_ context.Context, id string) (*models.Task, error) {
	return r.get("Tasks.GetForShare", id)
}

func (r *memTasks) sorted(keep func(*models.Task) bool) []*models.Task {
	var out []*models.Task
	for _, t := range r.s.tasks {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memTasks) List(_ context.Context, status models.TaskStatus, limit, offset int) ([]*models.Task, error) {
	if err := r.s.fail["Tasks.List"]; err != nil {
		return nil, err
	}
	out := r.sorted(func(t *models.Task) bool { return t.Status == status })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTasks) ListByCreator(_ context.Context, creatorID string) ([]*models.Task, error) {
	return r.sorted(func(t *models.Task) bool { return t.CreatorID == creatorID }), nil
}

func (r *memTasks) ListCompletedBy(_ context.Context, submitterID string) ([]*models.Task, error) {
	return r.sorted(func(t *models.Task) bool {
		for _, sub := range r.s.subs {
			if sub.TaskID == t.ID && sub.SubmitterID == submitterID && sub.Status == models.SubmissionStatusAccepted {
				return true
			}
		}
		return false
	}), nil
}

func (r *memTasks) FindInBox(_ context.Context, box models.BoundingBox) ([]*models.Task, error) {
	if err := r.s.fail["Tasks.FindInBox"]; err != nil {
		return nil, err
	}
	return r.sorted(func(t *models.Task) bool {
		return t.Status == models.TaskStatusActive &&
			t.Latitude >= box.MinLat && t.Latitude <= box.MaxLat &&
			t.Longitude >= box.MinLng && t.Longitude <= box.MaxLng
	}), nil
}

func (r *memTasks) Update(_ context.Context, t *models.Task) error {
	if err := r.s.fail["Tasks.Update"]; err != nil {
		return err
	}
	if _, ok := r.s.tasks[t.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *t
	r.s.tasks[t.ID] = &cp
	return nil
}

func (r *memTasks) SetStatus(_ context.Context, id string, from, to models.TaskStatus) (bool, error) {
	if err := r.s.fail["Tasks.SetStatus"]; err != nil {
		return false, err
	}
	t, ok := r.s.tasks[id]
	if !ok || t.Status != from || r.s.lostRace["Tasks.SetStatus"] {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (r *memTasks) Delete(_ context.Context, id string) error {
	if err := r.s.fail["Tasks.Delete"]; err != nil {
		return err
	}
	if _, ok := r.s.tasks[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

// --- submissions ---

type memSubmissions struct{ s *memStore }

func (r *memSubmissions) Create(_ context.Context, sub *models.Submission) (*models.Submission, error) {
	if err := r.s.fail["Submissions.Create"]; err != nil {
		return nil, err
	}
	id, ts := r.s.next("sub")
	cp := *sub
	cp.ID, cp.Status, cp.SubmittedAt = id, models.SubmissionStatusPending, ts
	r.s.subs[id] = &cp
	out := cp
	return &out, nil
}

func (r *memSubmissions) GetByID(_ context.Context, id string) (*models.Submission, error) {
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubmissions) ListByTask(_ context.Context, taskID string) ([]*models.Submission, error) {
	if err := r.s.fail["Submissions.ListByTask"]; err != nil {
		return nil, err
	}
	var out []*models.Submission
	for _, sub := range r.s.subs {
		if sub.TaskID == taskID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (r *memSubmissions) CountByTask(_ context.Context, taskID string) (int64, error) {
	if err := r.s.fail["Submissions.CountByTask"]; err != nil {
		return 0, err
	}
	var n int64
	for _, sub := range r.s.subs {
		if sub.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (r *memSubmissions) LockForSettlement(_ context.Context, id string) (*models.SettlementTarget, error) {
	if err := r.s.fail["Submissions.LockForSettlement"]; err != nil {
		return nil, err
	}
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	t, ok := r.s.tasks[sub.TaskID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.SettlementTarget{
		SubmissionID:     sub.ID,
		SubmissionStatus: sub.Status,
		SubmitterID:      sub.SubmitterID,
		TaskID:           t.ID,
		TaskStatus:       t.Status,
		CreatorID:        t.CreatorID,
		BountyAmount:     t.BountyAmount,
	}, nil
}

func (r *memSubmissions) SetStatus(_ context.Context, id string, from, to models.SubmissionStatus) (bool, error) {
	if err := r.s.fail["Submissions.SetStatus"]; err != nil {
		return false, err
	}
	sub, ok := r.s.subs[id]
	if !ok || sub.Status != from || r.s.lostRace["Submissions.SetStatus"] {
		return false, nil
	}
	sub.Status = to
	ts := r.s.clock
	sub.ReviewedAt = &ts
	return true, nil
}

// --- ledger ---

type memLedger struct{ s *memStore }

func (r *memLedger) Append(_ context.Context, e *models.LedgerEntry) error {
	if err := r.s.fail["Ledger.Append"]; err != nil {
		return err
	}
	id, ts := r.s.next("tx")
	e.ID, e.CreatedAt = id, ts
	cp := *e
	r.s.ledger = append(r.s.ledger, &cp)
	return nil
}

func (r *memLedger) ListByUser(_ context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	if err := r.s.fail["Ledger.ListByUser"]; err != nil {
		return nil, err
	}
	var out []*models.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.s.ledger[i]
		if e.ToUserID == userID || (e.FromUserID != nil && *e.FromUserID == userID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memLedger) Drift(_ context.Context) ([]*models.BalanceDrift, error) {
	if err := r.s.fail["Ledger.Drift"]; err != nil {
		return nil, err
	}
	var out []*models.BalanceDrift
	for _, u := range r.s.users {
		if sum := r.s.ledgerBalance(u.ID); sum != u.CoinBalance {
			out = append(out, &models.BalanceDrift{UserID: u.ID, UserName: u.UserName, CoinBalance: u.CoinBalance, LedgerBalance: sum})
		}
	}
	return out, nil
}

func (m *memStore) ledgerBalance(userID string) int64 {
	var sum int64
	for _, e := range m.ledger {
		if e.ToUserID == userID {
			sum += e.Amount
		}
		if e.FromUserID != nil && *e.FromUserID == userID {
			sum -= e.Amount
		}
	}
	return sum
}
