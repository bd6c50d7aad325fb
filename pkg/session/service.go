// Package session coordinates the lifecycle of a room's logging session.
package session

import (
	"log/slog"
	"time"

	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/notify"
	"github.com/harunnryd/tarjama/pkg/store"
)

// Service bundles the collaborators shared by every room in the process.
// Build it once at startup and hand it to each Coordinator.
type Service struct {
	Store    store.Store
	Notifier notify.Notifier
	Sessions *Cache
	Now      func() time.Time
	Logger   *slog.Logger
}

func NewService(st store.Store, notifier notify.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		Store:    st,
		Notifier: notifier,
		Sessions: NewCache(),
		Now:      func() time.Time { return time.Now().UTC() },
		Logger:   logging.NewComponentLogger(logger, "session"),
	}
}
