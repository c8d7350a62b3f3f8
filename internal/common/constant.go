// Package common contains shared constants and sentinel errors used across
// SpaceTask components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// ServiceName is the fully qualified gRPC service name shared by server and CLI.
const ServiceName = "spacetask.v1.SpaceTask"

const (
	// SignupBonus is granted to every account at creation.
	SignupBonus int64 = 200
	// BaseReward is paid by the system to an accepted submitter on top of the bounty.
	BaseReward int64 = 10
)
