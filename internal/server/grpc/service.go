package grpc

import (
	"context"

	"github.com/spacetask/spacetask/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = common.ServiceName

type handlerFunc func(s *GRPCServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

type method struct {
	name   string
	public bool
	handle handlerFunc
}

var methods = []method{
	{"Ping", true, (*GRPCServer).ping},
	{"Signup", true, (*GRPCServer).signup},
	{"Login", true, (*GRPCServer).login},
	{"Me", false, (*GRPCServer).me},
	{"GetUser", false, (*GRPCServer).getUser},
	{"CreateTask", false, (*GRPCServer).createTask},
	{"GetTask", false, (*GRPCServer).getTask},
	{"ListTasks", false, (*GRPCServer).listTasks},
	{"UpdateTask", false, (*GRPCServer).updateTask},
	{"CancelTask", false, (*GRPCServer).cancelTask},
	{"DeleteTask", false, (*GRPCServer).deleteTask},
	{"NearbyTasks", false, (*GRPCServer).nearbyTasks},
	{"SubmitProof", false, (*GRPCServer).submitProof},
	{"ListSubmissions", false, (*GRPCServer).listSubmissions},
	{"AcceptSubmission", false, (*GRPCServer).acceptSubmission},
	{"RejectSubmission", false, (*GRPCServer).rejectSubmission},
	{"Leaderboard", false, (*GRPCServer).leaderboard},
	{"LedgerHistory", false, (*GRPCServer).ledgerHistory},
	{"PresignUpload", false, (*GRPCServer).presignUpload},
	{"UserTasks", false, (*GRPCServer).userTasks},
	{"UserCompletions", false, (*GRPCServer).userCompletions},
}

// FullMethod returns the gRPC path of a SpaceTask method, e.g.
// "/spacetask.v1.SpaceTask/Ping".
func FullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

var publicMethods = func() map[string]bool {
	m := make(map[string]bool)
	for _, md := range methods {
		if md.public {
			m[FullMethod(md.name)] = true
		}
	}
	return m
}()

func serviceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "spacetask/v1/spacetask.proto",
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unaryHandler(m),
		})
	}
	return desc
}

func unaryHandler(m method) grpc.MethodHandler {
	fullMethod := FullMethod(m.name)

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*GRPCServer)
		if interceptor == nil {
			return m.handle(s, ctx, in)
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return m.handle(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
	}
}
