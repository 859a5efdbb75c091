// Package app wires the configuration into a running dispatch service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/config"
	"github.com/tavi-ops/dispatchd/core/automation"
	"github.com/tavi-ops/dispatchd/core/confirm"
	"github.com/tavi-ops/dispatchd/core/contact"
	"github.com/tavi-ops/dispatchd/core/conversation"
	"github.com/tavi-ops/dispatchd/core/discovery"
	coremetrics "github.com/tavi-ops/dispatchd/core/metrics"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/core/store"
	"github.com/tavi-ops/dispatchd/infra/ai"
	"github.com/tavi-ops/dispatchd/infra/logger"
	"github.com/tavi-ops/dispatchd/infra/messaging"
	_ "github.com/tavi-ops/dispatchd/infra/metrics"
	"github.com/tavi-ops/dispatchd/infra/places"
	infrastore "github.com/tavi-ops/dispatchd/infra/store"
)

// Service bundles the dispatch pipeline and its collaborators.
type Service struct {
	Coordinator   *automation.Coordinator
	Conversations *conversation.Manager
	Discovery     *discovery.Service
	store         store.Store
	log           logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	st := infrastore.NewMemoryStore()

	aiClient := ai.New(cfg.AI, logger.New("ai"))

	var searcher discovery.PlaceSearcher
	if cfg.GooglePlaces.APIKey != "" {
		searcher = places.NewGoogleClient(cfg.GooglePlaces)
	}
	var reviews discovery.ReviewSearcher
	if cfg.Yelp.APIKey != "" {
		reviews = places.NewYelpClient(cfg.Yelp)
	}
	var queries discovery.QueryGenerator
	if !aiClient.Offline() {
		queries = aiClient
	}
	disc, err := discovery.NewService(st, searcher, reviews, queries, cfg.Discovery, logger.New("discovery"))
	if err != nil {
		return nil, fmt.Errorf("discovery service: %w", err)
	}

	messenger := messaging.New(cfg.Messaging)
	var writer contact.MessageWriter
	if !aiClient.Offline() {
		writer = aiClient
	}
	contactSvc, err := contact.NewService(st, messenger, writer, logger.New("contact"))
	if err != nil {
		return nil, fmt.Errorf("contact service: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	convMgr, err := conversation.NewManager(st, aiClient, cfg.Conversation.Caps(), sink, logger.New("conversation"))
	if err != nil {
		return nil, fmt.Errorf("conversation manager: %w", err)
	}

	approvals := confirm.NewSimulatedApprovals(cfg.Simulation.Seed)
	confirmer, err := confirm.NewOrchestrator(st, approvals, messenger, logger.New("confirm"))
	if err != nil {
		return nil, fmt.Errorf("confirm orchestrator: %w", err)
	}

	var collector automation.ResponseCollector
	if cfg.Simulation.Responses {
		collector, err = automation.NewSimulatedVendorResponder(st, convMgr, cfg.Simulation.Seed, logger.New("simulator"))
		if err != nil {
			return nil, fmt.Errorf("simulated responder: %w", err)
		}
	}

	coord, err := automation.NewCoordinator(st, disc, contactSvc, collector, confirmer, sink,
		automation.Config{
			MaxConfirmAttempts: cfg.Automation.MaxConfirmAttempts,
			ConfirmPacing:      cfg.Automation.Pacing(),
		}, logger.New("automation"))
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	return &Service{
		Coordinator:   coord,
		Conversations: convMgr,
		Discovery:     disc,
		store:         st,
		log:           logg,
	}, nil
}

// Store exposes the persistence layer.
func (s *Service) Store() store.Store { return s.store }

// CreateWorkOrder persists a new work order ready for dispatch.
func (s *Service) CreateWorkOrder(ctx context.Context, title, description string, trade model.TradeType, loc model.Location, managerName, managerEmail string) (model.WorkOrder, error) {
	now := time.Now().UTC()
	wo := model.WorkOrder{
		ID:                   uuid.New(),
		Title:                title,
		Description:          description,
		Trade:                trade,
		Location:             loc,
		Urgency:              "medium",
		Status:               model.StatusSubmitted,
		FacilityManagerName:  managerName,
		FacilityManagerEmail: managerEmail,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.PutWorkOrder(ctx, wo); err != nil {
		return model.WorkOrder{}, err
	}
	s.log.Infof("work order %s created: %s", wo.ID, wo.Title)
	return wo, nil
}

// Dispatch starts the pipeline for a work order and returns its progress
// stream.
func (s *Service) Dispatch(ctx context.Context, workOrderID uuid.UUID) <-chan automation.ProgressEvent {
	return s.Coordinator.Run(ctx, workOrderID)
}
