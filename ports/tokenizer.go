package ports

import "github.com/giovaborgogno/siwe-auth/core"

// Tokenizer converts between sessions and signed tokens
type Tokenizer interface {
	// Access token operations
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)

	// Refresh token operations
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)
}
