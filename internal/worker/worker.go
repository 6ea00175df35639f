// Package worker provides async event processing for the Pro edition.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pricevault/tierkit/internal/domain"
)

// Worker consumes configuration and evaluation events from the EventBus.
// Configuration updates invalidate the cached parsed configuration so the
// next evaluation sees the new tiers; completed evaluations are persisted
// asynchronously and gift awards are republished for downstream consumers.
type Worker struct {
	bus   domain.EventBus
	repo  domain.Repository
	cache domain.Cache

	subscriptions []domain.Subscription
	jobs          chan job
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// job is one event handed from a bus subscription to the processing pool.
type job struct {
	shopID string
	topic  string
	msg    *domain.Message
}

// Config holds worker configuration.
type Config struct {
	// ShopIDs is the list of shops to process
	ShopIDs []string

	// WorkerCount is the number of concurrent processing goroutines shared
	// across all shops
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		cache:  cache,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing events for the given shops. Subscriptions only
// enqueue; the actual handling runs on the processing pool so a slow
// repository write never blocks the bus callback.
func (w *Worker) Start(cfg Config) error {
	count := cfg.WorkerCount
	if count <= 0 {
		count = 1
	}
	w.jobs = make(chan job, count*16)

	for i := 0; i < count; i++ {
		w.wg.Add(1)
		go w.run()
	}

	for _, shopID := range cfg.ShopIDs {
		if err := w.startShopWorker(shopID); err != nil {
			slog.Error("failed to start worker for shop",
				"shop_id", shopID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"shop_count", len(cfg.ShopIDs),
		"worker_count", count,
	)

	return nil
}

// run drains the job queue until the worker is stopped.
func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case j := <-w.jobs:
			var err error
			switch j.topic {
			case domain.TopicConfigUpdated:
				err = w.handleConfigUpdated(w.ctx, j.shopID, j.msg)
			case domain.TopicEvaluationCompleted:
				err = w.handleEvaluationCompleted(w.ctx, j.shopID, j.msg)
			}
			if err != nil {
				slog.Error("event processing failed",
					"topic", j.topic,
					"shop_id", j.shopID,
					"error", err,
				)
			}
		}
	}
}

// enqueue hands a message to the pool. Blocks when the queue is full so
// backpressure reaches the bus instead of dropping events.
func (w *Worker) enqueue(shopID string, topic string, msg *domain.Message) error {
	select {
	case w.jobs <- job{shopID: shopID, topic: topic, msg: msg}:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

// startShopWorker subscribes to the shop's event topics.
func (w *Worker) startShopWorker(shopID string) error {
	cfgSub, err := w.bus.Subscribe(w.ctx, shopID, domain.TopicConfigUpdated, func(ctx context.Context, msg *domain.Message) error {
		return w.enqueue(shopID, domain.TopicConfigUpdated, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, cfgSub)

	evalSub, err := w.bus.Subscribe(w.ctx, shopID, domain.TopicEvaluationCompleted, func(ctx context.Context, msg *domain.Message) error {
		return w.enqueue(shopID, domain.TopicEvaluationCompleted, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, evalSub)

	slog.Info("shop worker started",
		"shop_id", shopID,
		"topics", []string{domain.TopicConfigUpdated, domain.TopicEvaluationCompleted},
	)

	return nil
}

// ConfigUpdatedMessage is the payload published when a merchant saves a
// discount configuration.
type ConfigUpdatedMessage struct {
	ShopID    string `json:"shopId"`
	ProductID string `json:"productId"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// handleConfigUpdated drops the cached parsed configuration for the product.
func (w *Worker) handleConfigUpdated(ctx context.Context, shopID string, msg *domain.Message) error {
	var update ConfigUpdatedMessage
	if err := json.Unmarshal(msg.Payload, &update); err != nil {
		slog.Error("failed to parse config update message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if update.ShopID != "" {
		shopID = update.ShopID
	}

	if w.cache != nil && update.ProductID != "" {
		if err := w.cache.Delete(ctx, shopID, "cfg:"+update.ProductID); err != nil {
			slog.Error("failed to invalidate cached configuration",
				"shop_id", shopID,
				"product_id", update.ProductID,
				"error", err,
			)
			return err
		}
	}

	slog.Debug("configuration cache invalidated",
		"shop_id", shopID,
		"product_id", update.ProductID,
		"deleted", update.Deleted,
	)

	return nil
}

// handleEvaluationCompleted persists the audit record and republishes gift
// awards.
func (w *Worker) handleEvaluationCompleted(ctx context.Context, shopID string, msg *domain.Message) error {
	start := time.Now()

	var record domain.EvaluationRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		slog.Error("failed to parse evaluation message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if record.ShopID != "" {
		shopID = record.ShopID
	}

	if w.repo != nil {
		if err := w.repo.SaveEvaluation(ctx, shopID, &record); err != nil {
			slog.Error("failed to save evaluation",
				"evaluation_id", record.ID,
				"error", err,
			)
			return err
		}
	}

	if record.GiftCount > 0 {
		if err := w.bus.Publish(ctx, shopID, domain.TopicGiftAwarded, msg.Payload); err != nil {
			slog.Error("failed to publish gift award",
				"evaluation_id", record.ID,
				"error", err,
			)
		}
	}

	slog.Info("evaluation persisted",
		"evaluation_id", record.ID,
		"shop_id", shopID,
		"status", record.Status,
		"candidates", record.CandidateCount,
		"gifts", record.GiftCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers. The pool goroutines exit on cancel and
// Stop waits for any in-flight handler to finish before returning.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
