// Package service implements the ingestion pipeline and the query
// operations over persisted entries.
package service

import (
	"go.uber.org/zap"

	"github.com/loglens/loglens/internal/adapter/plugin"
	"github.com/loglens/loglens/internal/config"
	store "github.com/loglens/loglens/internal/repository"
)

type Service struct {
	store  store.Store
	stages []plugin.Stage
	config *config.Config
	log    *zap.SugaredLogger
}

func New(store store.Store, stages []plugin.Stage, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		stages: stages,
		config: cfg,
		log:    log,
	}
}
