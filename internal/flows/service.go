package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.Tokens != nil && s.deps.Login.Sessions != nil
}

func (s Service) RequestOTP(ctx context.Context, req RequestOTPRequest) RequestOTPResult {
	return RunRequestOTP(ctx, req, s.deps.RequestOTP)
}

func (s Service) Login(ctx context.Context, email, code string) LoginResult {
	return RunLogin(ctx, email, code, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, req LogoutRequest) LogoutResult {
	return RunLogout(ctx, req, s.deps.Logout)
}

func (s Service) RequestEmailChange(ctx context.Context, req EmailChangeRequest) EmailChangeResult {
	return RunRequestEmailChange(ctx, req, s.deps.EmailChange)
}

func (s Service) VerifyEmailChange(ctx context.Context, req EmailChangeVerifyRequest) EmailChangeResult {
	return RunVerifyEmailChange(ctx, req, s.deps.EmailChange)
}

func (s Service) RequestDeletion(ctx context.Context, userID string) DeletionResult {
	return RunRequestDeletion(ctx, userID, s.deps.Deletion)
}

func (s Service) CancelDeletionByToken(ctx context.Context, token string) CancelResult {
	return RunCancelDeletionByToken(ctx, token, s.deps.Deletion)
}

func (s Service) CancelDeletion(ctx context.Context, userID string) CancelResult {
	return RunCancelDeletion(ctx, userID, s.deps.Deletion)
}

func (s Service) Sweep(ctx context.Context) (SweepResult, error) {
	return RunSweep(ctx, s.deps.Sweep)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) ResetResult {
	return RunRequestPasswordReset(ctx, email, s.deps.Reset)
}
