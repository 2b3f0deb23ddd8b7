package flows

import (
	"context"

	"github.com/MrEthical07/goSession/apiclient"
)

// Channel is the slice of the realtime channel the flows drive.
type Channel interface {
	Connect(sessionID string) error
	Disconnect()
}

// API is the slice of the remote API the flows call.
type API interface {
	Authenticate(ctx context.Context, req apiclient.AuthRequest) (apiclient.AuthResponse, error)
	Logout(ctx context.Context, path string, req apiclient.LogoutRequest) (apiclient.StatusResponse, error)
	ValidateSession(ctx context.Context, sessionID string) (apiclient.ValidateResponse, error)
	ForceLogout(ctx context.Context, adminSessionID string, req apiclient.ForceLogoutRequest) (apiclient.StatusResponse, error)
}

// Deps groups flow dependency sets. The controller builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Login     LoginDeps
	Logout    LogoutDeps
	Forced    ForcedDeps
	Bootstrap BootstrapDeps
	Admin     AdminDeps
}
