package storefront

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RemoteConfig describes one storefront gateway endpoint. The gjson paths
// let the same adapter speak to gateways with differing response shapes
// without per-storefront code.
type RemoteConfig struct {
	Name      string
	BaseURL   string
	PricePath string // gjson path to the quoted price
	LabelPath string // gjson path to the normalized product label
	FoundPath string // optional gjson path to an explicit found flag
	OrderBody string // JSON template for purchase requests
}

// RemoteAdapter probes a storefront through an HTTP gateway that fronts
// the actual platform (device automation, scraping, vendor API). The
// gateway contract: GET {base}/quote?q=… returns JSON or an automation
// transcript; POST {base}/order places a purchase.
type RemoteAdapter struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemote creates a RemoteAdapter. A nil client gets a default with a
// generous timeout; per-call deadlines come from the caller's context.
func NewRemote(cfg RemoteConfig, client *http.Client) *RemoteAdapter {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.PricePath == "" {
		cfg.PricePath = "price"
	}
	if cfg.LabelPath == "" {
		cfg.LabelPath = "label"
	}
	if cfg.OrderBody == "" {
		cfg.OrderBody = `{"payment":"cod"}`
	}
	return &RemoteAdapter{cfg: cfg, client: client}
}

func (r *RemoteAdapter) Name() string { return r.cfg.Name }

// Probe asks the gateway for a quote. Structured responses are read via
// the configured gjson paths; free-form transcript responses fall back to
// the text heuristics in extract.go.
func (r *RemoteAdapter) Probe(ctx context.Context, query string) (Quote, error) {
	u := fmt.Sprintf("%s/quote?q=%s", strings.TrimRight(r.cfg.BaseURL, "/"), url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Quote{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return Quote{Reason: "price not found"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("gateway %s: unexpected status %d", r.cfg.Name, resp.StatusCode)
	}
	text := string(body)

	if gjson.Valid(text) {
		if r.cfg.FoundPath != "" {
			if f := gjson.Get(text, r.cfg.FoundPath); f.Exists() && !f.Bool() {
				reason := gjson.Get(text, "error").String()
				if reason == "" {
					reason = "price not found"
				}
				return Quote{Reason: reason}, nil
			}
		}
		if p := gjson.Get(text, r.cfg.PricePath); p.Exists() {
			return Quote{
				Found: true,
				Price: p.Float(),
				Label: gjson.Get(text, r.cfg.LabelPath).String(),
			}, nil
		}
	}

	// transcript fallback
	if price, ok := ExtractPrice(text); ok {
		return Quote{Found: true, Price: price, Label: ExtractLabel(text, query)}, nil
	}
	return Quote{Reason: "price not found"}, nil
}

// Purchase posts an order built from the configured body template.
func (r *RemoteAdapter) Purchase(ctx context.Context, query string) error {
	body, err := sjson.Set(r.cfg.OrderBody, "product", query)
	if err != nil {
		return err
	}
	u := strings.TrimRight(r.cfg.BaseURL, "/") + "/order"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		reason := gjson.GetBytes(raw, "error").String()
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("gateway %s rejected order: %s", r.cfg.Name, reason)
	}
	return nil
}
