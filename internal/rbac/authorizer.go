package rbac

import (
	"context"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// Authorizer implements shared.Authorizer for the actor carried by the context.
type Authorizer struct {
	source PermissionSource
	logger *slog.Logger
}

// NewAuthorizer builds an Authorizer.
func NewAuthorizer(source PermissionSource, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{source: source, logger: logger}
}

// Can reports whether the context actor holds permission. An anonymous actor
// holds nothing.
func (a *Authorizer) Can(ctx context.Context, permission string) (bool, error) {
	actor := shared.ActorFromContext(ctx)
	if actor.ID == 0 {
		return false, nil
	}
	granted, err := a.source.EffectivePermissions(ctx, actor.ID)
	if err != nil {
		a.logger.Error("rbac effective permissions", slog.Int64("user_id", actor.ID), slog.Any("error", err))
		return false, err
	}
	return hasPermission(granted, permission), nil
}

func hasPermission(granted []string, required string) bool {
	required = normalize(required)
	if required == "" {
		return true
	}
	for _, g := range granted {
		g = normalize(g)
		switch {
		case g == required, g == Wildcard:
			return true
		case strings.HasSuffix(g, "."+Wildcard) && strings.HasPrefix(required, strings.TrimSuffix(g, Wildcard)):
			return true
		}
	}
	return false
}

func normalize(p string) string {
	return strings.TrimSpace(strings.ToLower(p))
}
