package orchestrator

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/price-hunter/internal/model"
	"github.com/fairyhunter13/price-hunter/internal/obs"
	"github.com/fairyhunter13/price-hunter/internal/storefront"
)

// StartOrder registers an order task against a single storefront and
// returns its id. An unknown storefront still produces a task; it fails
// with that reason so the outcome is observable like any other order.
func (o *Orchestrator) StartOrder(query, app string) (string, error) {
	if o.closing.Load() {
		return "", ErrShuttingDown
	}
	id := o.reg.Create(model.KindOrder, query)
	_ = o.reg.Update(id, func(t *model.Task) {
		t.Status = model.StatusRunning
	})
	o.spawn(func(ctx context.Context) { o.runOrder(ctx, id, query, app) })
	obs.Logger.Info("order_started", "task_id", id, "product", query, "app", app)
	return id, nil
}

func (o *Orchestrator) runOrder(ctx context.Context, id, query, app string) {
	o.bus.Publish(id, model.Update{Status: "ordering", CurrentApp: app})

	adapter, err := o.fronts.Lookup(app)
	if err == nil {
		err = o.purchase(ctx, adapter, query)
	}
	if err != nil {
		o.failOrder(id, app, err)
		return
	}

	if uerr := o.reg.Update(id, func(t *model.Task) {
		t.Status = model.StatusCompleted
	}); uerr != nil {
		obs.Logger.Warn("order_finalize_orphaned", "task_id", id, "error", uerr)
		return
	}
	o.bus.Publish(id, model.Update{Status: string(model.StatusCompleted)})
	o.bus.Close(id)
	obs.Logger.Info("order_completed", "task_id", id, "app", app)
}

func (o *Orchestrator) purchase(ctx context.Context, adapter storefront.Adapter, query string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	if o.cfg.PurchaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.PurchaseTimeout)
		defer cancel()
	}
	return adapter.Purchase(ctx, query)
}

// failOrder marks the task failed with a non-empty reason and publishes
// the terminal error update.
func (o *Orchestrator) failOrder(id, app string, cause error) {
	reason := cause.Error()
	if reason == "" {
		reason = "order failed"
	}
	if err := o.reg.Update(id, func(t *model.Task) {
		t.Status = model.StatusFailed
		t.Error = reason
	}); err != nil {
		obs.Logger.Warn("order_finalize_orphaned", "task_id", id, "error", err)
		return
	}
	o.bus.Publish(id, model.Update{Status: "error", Error: reason})
	o.bus.Close(id)
	obs.Logger.Info("order_failed", "task_id", id, "app", app, "reason", reason)
}
