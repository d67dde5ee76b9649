package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/54b3r/caselaw-rag/internal/logging"
	"github.com/54b3r/caselaw-rag/internal/rag"
	"github.com/54b3r/caselaw-rag/internal/store"
)

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (rag.Identity, error)
}

// DialogOwnership reports whether a dialog exists and is owned by a user.
// Implementations return store.ErrNotFound when it does not, without
// distinguishing a missing dialog from one owned by someone else.
type DialogOwnership interface {
	OwnedDialog(ctx context.Context, dialogID, userID string) error
}

// Guard implements rag.Authorizer. It performs read-only lookups only.
type Guard struct {
	verifier TokenVerifier
	dialogs  DialogOwnership
}

// NewGuard returns a Guard over verifier and dialogs.
func NewGuard(verifier TokenVerifier, dialogs DialogOwnership) *Guard {
	return &Guard{verifier: verifier, dialogs: dialogs}
}

// Authorize validates token and checks that dialogID belongs to its subject.
// A missing token and an invalid token map to KindUnauthenticated; a dialog
// that is absent, foreign or not a UUID maps to KindNotFound; a failing
// ownership lookup maps to KindInternal.
func (g *Guard) Authorize(ctx context.Context, token, dialogID string) (rag.Identity, error) {
	log := logging.FromContext(ctx)

	if token == "" {
		return rag.Identity{}, rag.NewError(rag.KindUnauthenticated, "Unauthorized", nil)
	}

	identity, err := g.verifier.Verify(ctx, token)
	if err != nil {
		// the token value itself is never logged
		log.Warn("auth: token rejected", slog.String("reason", err.Error()))
		return rag.Identity{}, rag.NewError(rag.KindUnauthenticated, "Invalid or expired token", err)
	}

	parsed, err := uuid.Parse(dialogID)
	if err != nil {
		return rag.Identity{}, rag.NewError(rag.KindNotFound, "Dialog not found", err)
	}

	// Stores compare the lowercase hyphenated form; uuid.Parse also accepts
	// urn:uuid:, braced and uppercase spellings.
	if err := g.dialogs.OwnedDialog(ctx, parsed.String(), identity.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return rag.Identity{}, rag.NewError(rag.KindNotFound, "Dialog not found", err)
		}
		log.Error("auth: dialog ownership lookup failed", slog.String("error", err.Error()))
		return rag.Identity{}, rag.NewError(rag.KindInternal, "Internal error", err)
	}

	return identity, nil
}
