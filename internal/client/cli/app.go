package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/spacetask/spacetask/internal/client/api"
	"github.com/spacetask/spacetask/internal/client/config"
	"github.com/spacetask/spacetask/internal/client/session"
	"github.com/spacetask/spacetask/internal/filex"
	"github.com/spacetask/spacetask/internal/netx"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// maxImageBytes bounds proof uploads.
const maxImageBytes = 10 << 20

type apiClient interface {
	Ping(ctx context.Context) error
	SetAccessToken(token string)
	Signup(ctx context.Context, userName, email, password string) (*api.Auth, error)
	Login(ctx context.Context, email, password string) (*api.Auth, error)
	Me(ctx context.Context) (*api.User, error)
	GetUser(ctx context.Context, userID string) (*api.User, error)
	CreateTask(ctx context.Context, in api.NewTask) (*api.Task, error)
	GetTask(ctx context.Context, taskID string) (*api.Task, error)
	UpdateTask(ctx context.Context, taskID string, patch api.TaskPatch) (*api.Task, error)
	CancelTask(ctx context.Context, taskID string) (*api.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	ListTasks(ctx context.Context, status string, limit, offset int) ([]api.Task, error)
	NearbyTasks(ctx context.Context, lat, lng, radiusKm float64) ([]api.Task, error)
	UserTasks(ctx context.Context, userID string) ([]api.Task, error)
	UserCompletions(ctx context.Context, userID string) ([]api.Task, error)
	SubmitProof(ctx context.Context, taskID, imageRef string, note *string) (*api.Submission, error)
	ListSubmissions(ctx context.Context, taskID string) ([]api.Submission, error)
	AcceptSubmission(ctx context.Context, submissionID string) (*api.Settlement, error)
	RejectSubmission(ctx context.Context, submissionID string) error
	Leaderboard(ctx context.Context, limit int) ([]api.LeaderboardEntry, error)
	LedgerHistory(ctx context.Context, limit int) ([]api.LedgerEntry, error)
	PresignUpload(ctx context.Context, fileName string) (*api.Upload, error)
	Close() error
}

type sessionStore interface {
	Load(ctx context.Context) (*session.Session, error)
	Save(ctx context.Context, s session.Session) error
	Clear(ctx context.Context) error
	Close() error
}

type App struct {
	config  *config.Config
	api     apiClient
	store   sessionStore
	reader  *bufio.Reader
	out     io.Writer
	session *session.Session

	// upload and readImage are seams over netx and filex.
	upload    func(ctx context.Context, url, contentType string, body []byte) error
	readImage func(path string) ([]byte, error)

	mu   sync.Mutex
	mode Mode
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	store, err := session.Open(ctx, c.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("error opening session store: %w", err)
	}

	apiClient, err := api.New(c.ServerEndpointAddr)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return newApp(c, apiClient, store, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, client apiClient, store sessionStore, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		api:    client,
		store:  store,
		reader: bufio.NewReader(in),
		out:    out,
		upload: func(ctx context.Context, url, contentType string, body []byte) error {
			return netx.UploadToPresignedURL(ctx, nil, url, contentType, body)
		},
		readImage: func(path string) ([]byte, error) {
			return filex.ReadImage(path, maxImageBytes)
		},
	}
}

// restoreSession picks up a login remembered by a previous run.
func (a *App) restoreSession(ctx context.Context) {
	sess, err := a.store.Load(ctx)
	if err != nil {
		log.Printf("error loading session: %v", err)
		return
	}
	if sess == nil {
		return
	}
	a.session = sess
	a.api.SetAccessToken(sess.AccessToken)
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		_ = a.api.Close()
		_ = a.store.Close()
	}()

	a.restoreSession(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	fmt.Fprintln(a.out, "Welcome to SpaceTask CLI (type 'help' for commands)")
	runREPL(ctx, a, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) getStatus() string {
	s := ""
	if a.session != nil {
		s = a.session.UserName + " "
	}
	s += string(a.currentMode())
	if s == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", s)
}

// probe pings the server once and updates the mode.
func (a *App) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.api.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher probes the server every interval until ctx is
// done. A non-positive interval disables it.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	a.probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// callCtx bounds one RPC by the configured timeout.
func (a *App) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.CallTimeout)
}
