package backend

import (
	"github.com/rios0rios0/contentsync/domain"
	"github.com/rios0rios0/contentsync/infrastructure/api"
)

// Session is what a backend needs from the session layer: the live token
// pair for requests (including silent-refresh write-back) and the current
// user identity for commit authorship.
type Session interface {
	api.TokenStore
	CurrentUser() *domain.User
}
