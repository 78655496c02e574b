package session

// Session is a refresh session. SessionID is the jti of its refresh token.
type Session struct {
	SessionID   string
	UserID      string
	RefreshHash [32]byte
	CreatedAt   int64
	ExpiresAt   int64
}
