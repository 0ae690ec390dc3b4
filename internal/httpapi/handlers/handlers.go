package handlers

import (
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
	"clipforge/internal/scheduler"
)

type Deps struct {
	Sched    *scheduler.Scheduler
	Store    ports.ObjectStore
	WorkRoot string
	Log      *logger.Logger
}

type Handler struct {
	sched    *scheduler.Scheduler
	store    ports.ObjectStore
	workRoot string
	log      *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		sched:    d.Sched,
		store:    d.Store,
		workRoot: d.WorkRoot,
		log:      log.WithComponent("handlers"),
	}
}
