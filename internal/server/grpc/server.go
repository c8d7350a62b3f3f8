// Package grpc exposes the SpaceTask services over gRPC. Messages are
// google.protobuf.Struct values so clients need no generated stubs.
package grpc

import (
	"context"
	"net"

	"github.com/spacetask/spacetask/internal/logging"
	"github.com/spacetask/spacetask/internal/server/auth"
	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/spacetask/spacetask/internal/server/services"
	"google.golang.org/grpc"
)

type userSvc interface {
	Signup(ctx context.Context, userName, email, password string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Get(ctx context.Context, userID string) (*models.User, error)
}

type taskSvc interface {
	Create(ctx context.Context, creatorID string, in services.NewTask) (*models.Task, error)
	Get(ctx context.Context, taskID string) (*models.Task, error)
	List(ctx context.Context, status models.TaskStatus, limit, offset int) ([]*models.Task, error)
	ListCreatedBy(ctx context.Context, userID string) ([]*models.Task, error)
	ListCompletedBy(ctx context.Context, userID string) ([]*models.Task, error)
	Update(ctx context.Context, taskID, actorID string, patch models.TaskPatch) (*models.Task, error)
	Cancel(ctx context.Context, taskID, actorID string) (*models.Task, error)
	Delete(ctx context.Context, taskID, actorID string) error
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]*models.Task, error)
}

type submissionSvc interface {
	Submit(ctx context.Context, taskID, submitterID, imageRef string, note *string) (*models.Submission, error)
	ListForTask(ctx context.Context, taskID, actorID string) ([]*models.Submission, error)
	Accept(ctx context.Context, submissionID, actorID string) (*models.Settlement, error)
	Reject(ctx context.Context, submissionID, actorID string) error
}

type leaderboardSvc interface {
	Top(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}

type ledgerSvc interface {
	History(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error)
}

type uploadSvc interface {
	PresignImageUpload(ctx context.Context, userID, fileName string) (*services.ImageUpload, error)
	PresignImageDownload(ctx context.Context, key string) (string, error)
}

// Services bundles the application services the server delegates to.
type Services struct {
	Users       userSvc
	Tasks       taskSvc
	Submissions submissionSvc
	Leaderboard leaderboardSvc
	Ledger      ledgerSvc
	Uploads     uploadSvc
}

type GRPCServer struct {
	address string
	svc     Services
	logger  logging.Logger
	tokens  *auth.Resolver
}

func NewGRPCServer(address string, l logging.Logger, svc Services, secretKey string) *GRPCServer {
	return &GRPCServer{
		address: address,
		svc:     svc,
		logger:  l.With("module", "grpc_server"),
		tokens:  auth.NewResolver([]byte(secretKey)),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestLogInterceptor, s.accessTokenInterceptor))
	desc := serviceDesc()
	srv.RegisterService(&desc, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}
