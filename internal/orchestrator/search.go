package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/fairyhunter13/price-hunter/internal/model"
	"github.com/fairyhunter13/price-hunter/internal/obs"
	"github.com/fairyhunter13/price-hunter/internal/storefront"
)

// ErrShuttingDown is returned when intake has been closed.
var ErrShuttingDown = errors.New("shutting down")

// StartSearch registers a search task over every configured storefront and
// returns its id. Probes run in the background; progress is observable via
// the broadcaster and the registry.
func (o *Orchestrator) StartSearch(query string) (string, error) {
	return o.startSearch(query, o.fronts.Names())
}

// StartSearchOne runs a search restricted to a single storefront.
func (o *Orchestrator) StartSearchOne(query, app string) (string, error) {
	if _, err := o.fronts.Lookup(app); err != nil {
		return "", err
	}
	return o.startSearch(query, []string{app})
}

func (o *Orchestrator) startSearch(query string, apps []string) (string, error) {
	if o.closing.Load() {
		return "", ErrShuttingDown
	}
	id := o.reg.Create(model.KindSearch, query)
	_ = o.reg.Update(id, func(t *model.Task) {
		t.Status = model.StatusRunning
		t.Dispatched = len(apps)
	})
	o.spawn(func(ctx context.Context) { o.runSearch(ctx, id, query, apps) })
	obs.Logger.Info("search_started", "task_id", id, "product", query, "storefronts", len(apps))
	return id, nil
}

type settled struct {
	app string
	res model.ProbeResult
}

// runSearch dispatches one probe goroutine per storefront and collects
// their results itself. Recording and publishing happen only here, so a
// subscriber sees every app_complete before the terminal update and the
// settled count cannot race.
func (o *Orchestrator) runSearch(ctx context.Context, id, query string, apps []string) {
	results := make(chan settled, len(apps))
	for _, app := range apps {
		adapter, err := o.fronts.Lookup(app)
		if err != nil {
			// unreachable for configured sets, but a probe must
			// still settle
			results <- settled{app: app, res: model.ProbeResult{App: app, Error: err.Error()}}
			continue
		}
		o.bus.Publish(id, model.Update{Status: "searching", CurrentApp: app})
		go func(app string, adapter storefront.Adapter) {
			results <- settled{app: app, res: o.probe(ctx, adapter, query)}
		}(app, adapter)
	}

	for range apps {
		s := <-results
		res := s.res
		if err := o.reg.Update(id, func(t *model.Task) {
			t.Results[s.app] = res
			t.Settled++
		}); err != nil {
			obs.Logger.Warn("probe_result_orphaned", "task_id", id, "app", s.app, "error", err)
			return
		}
		o.bus.Publish(id, model.Update{Status: "searching", AppComplete: s.app, Result: &res})
		obs.Logger.Info("probe_settled", "task_id", id, "app", s.app, "found", res.Found)
	}

	o.finalizeSearch(id, apps)
}

// probe runs one adapter under the configured timeout, downgrading every
// failure mode, including panics in adapter code, to a not-found result.
func (o *Orchestrator) probe(ctx context.Context, adapter storefront.Adapter, query string) (res model.ProbeResult) {
	app := adapter.Name()
	res = model.ProbeResult{App: app}
	defer func() {
		if r := recover(); r != nil {
			res = model.ProbeResult{App: app, Error: fmt.Sprintf("adapter panic: %v", r)}
		}
	}()

	if o.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ProbeTimeout)
		defer cancel()
	}
	q, err := adapter.Probe(ctx, query)
	switch {
	case err != nil:
		res.Error = err.Error()
	case q.Found:
		price := q.Price
		res.Found = true
		res.Price = &price
		res.Label = q.Label
	default:
		res.Error = q.Reason
		if res.Error == "" {
			res.Error = "price not found"
		}
	}
	return res
}

// finalizeSearch selects the winner, completes the task, and publishes the
// terminal update before closing the task's topic.
func (o *Orchestrator) finalizeSearch(id string, apps []string) {
	var best *model.Offer
	err := o.reg.Update(id, func(t *model.Task) {
		best = selectOffer(apps, t.Results)
		t.Best = best
		t.Status = model.StatusCompleted
	})
	if err != nil {
		obs.Logger.Warn("search_finalize_orphaned", "task_id", id, "error", err)
		return
	}
	o.bus.Publish(id, model.Update{Status: string(model.StatusCompleted), Best: best})
	o.bus.Close(id)
	if best != nil {
		obs.Logger.Info("search_completed", "task_id", id, "best_app", best.App, "best_price", best.Price)
	} else {
		obs.Logger.Info("search_completed", "task_id", id, "best_app", "")
	}
}

// selectOffer picks the minimum found price. Iteration follows the
// configured storefront order, so equal prices resolve to the earlier
// configured storefront no matter which probe settled first.
func selectOffer(apps []string, results map[string]model.ProbeResult) *model.Offer {
	var best *model.Offer
	for _, app := range apps {
		r, ok := results[app]
		if !ok || !r.Found || r.Price == nil {
			continue
		}
		if best == nil || *r.Price < best.Price {
			best = &model.Offer{App: app, Price: *r.Price}
		}
	}
	return best
}
