package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/repository"
	"github.com/attaboy/siteadmin/internal/store"
)

// Invalidator notifies viewers of a page that its data changed.
type Invalidator interface {
	Invalidate(ctx context.Context, ev domain.RevalidationEvent) error
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, domain.RevalidationEvent) error { return nil }

// toAppError maps repository and store failures onto the domain taxonomy.
// Storage causes are logged here and kept out of the client message.
func toAppError(logger *slog.Logger, op string, err error) error {
	var appErr *domain.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		if appErr.Code == domain.CodeInternal || appErr.Code == domain.CodeStorage {
			logger.Error(op+" failed", "error", err)
		}
		return appErr
	case errors.Is(err, repository.ErrAdminExists):
		return domain.ErrAlreadyExists("an admin account already exists")
	case errors.Is(err, repository.ErrAdminNotFound):
		return domain.ErrNotFound("admin account", "")
	case errors.Is(err, repository.ErrAdminIDChanged):
		return domain.ErrValidationFields(map[string]string{"adminId": "admin ID cannot be changed"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrInternal("request canceled", err)
	case errors.Is(err, store.ErrCorrupt):
		logger.Error(op+" failed: admin record is corrupt", "error", err)
		return domain.ErrStorage("the admin record is corrupt", err)
	default:
		logger.Error(op+" failed", "error", err)
		return domain.ErrStorage("could not access the admin record", err)
	}
}

// notify fires an invalidation and only logs failures: the mutation already happened.
func notify(ctx context.Context, inv Invalidator, logger *slog.Logger, reason string) {
	ev := domain.NewAdminSettingsChanged(reason)
	if err := inv.Invalidate(ctx, ev); err != nil {
		logger.Warn("revalidation failed", "tag", ev.Tag, "reason", reason, "error", err)
	}
}
