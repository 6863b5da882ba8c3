package http

import (
	"github.com/mrlokans/flashshelf/internal/addbook"
	"github.com/mrlokans/flashshelf/internal/auth"
	"github.com/mrlokans/flashshelf/internal/database"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Books    BookService
	Forms    FormRegistry
	Database *database.Database

	// Passcode gate. When Gate is nil every route is open (tests, local tools).
	Gate           *auth.Gate
	SessionManager *auth.SessionManager
	CSRFSecret     []byte
	SecureCookies  bool

	// Extra origins the front-end fetches from directly (Supabase project URL).
	ConnectOrigins []string

	// Static front-end bundle
	StaticPath string

	// Local cover bucket; empty when covers live in Supabase Storage.
	CoversDir     string
	CoversURLPath string

	// Maximum accepted cover upload size in bytes.
	MaxUploadBytes int64

	// Application info
	Version string
}

var _ FormRegistry = (*addbook.Registry)(nil)
