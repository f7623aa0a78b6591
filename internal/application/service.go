// Package application implements the messaging use cases over the repository:
// conversation creation, message append, history listing and read tracking.
// All state-changing operations run inside a transaction; delivery events are
// committed to the outbox in the same transaction and dispatched afterwards
// by the outbox worker.
package application

import (
	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/membership"
	"github.com/hordelabs/horde/internal/repository"
	"github.com/hordelabs/horde/internal/tx"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type Service struct {
	repo      repository.Repository
	tx        tx.Transactor
	directory membership.Directory
	log       *zap.Logger
}

func New(repo repository.Repository, transactor tx.Transactor, directory membership.Directory, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, tx: transactor, directory: directory, log: log}
}

func clampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
