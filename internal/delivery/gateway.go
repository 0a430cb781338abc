package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"festhub/features/subscription"
)

// Gateway is the raw transport to the external push service. The concrete
// protocol (encryption, VAPID, etc.) lives behind this boundary; the
// implementation is chosen at construction.
type Gateway interface {
	// Send returns the gateway's HTTP status code, or an error when the
	// request never completed.
	Send(ctx context.Context, sub subscription.Subscription, body []byte) (int, error)
}

// HTTPGateway posts the payload to the subscription's endpoint.
type HTTPGateway struct {
	client *http.Client
	ttl    int
}

func NewHTTPGateway(timeout time.Duration, ttlSeconds int) *HTTPGateway {
	return &HTTPGateway{
		client: &http.Client{Timeout: timeout},
		ttl:    ttlSeconds,
	}
}

func (g *HTTPGateway) Send(ctx context.Context, sub subscription.Subscription, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", strconv.Itoa(g.ttl))
	req.Header.Set("X-Push-P256dh", sub.P256dh)
	req.Header.Set("X-Push-Auth", sub.Auth)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// GatewayService wraps a Gateway with rate limiting and outcome
// classification.
type GatewayService struct {
	gateway Gateway
	limiter *rate.Limiter
}

func NewGatewayService(gateway Gateway, ratePerSec int) *GatewayService {
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	return &GatewayService{
		gateway: gateway,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

func (s *GatewayService) Deliver(ctx context.Context, sub subscription.Subscription, payload Payload) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Outcome: TransientFailure, Err: err}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{Outcome: TransientFailure, Err: err}
	}

	status, err := s.gateway.Send(ctx, sub, body)
	if err != nil {
		return Result{Outcome: TransientFailure, Err: err}
	}

	switch {
	case status >= 200 && status < 300:
		return Result{Outcome: Delivered}
	case status == http.StatusGone || status == http.StatusNotFound:
		// The endpoint is permanently invalid; the caller prunes it.
		return Result{Outcome: PermanentFailure, Err: fmt.Errorf("gateway status %d", status)}
	default:
		return Result{Outcome: TransientFailure, Err: fmt.Errorf("gateway status %d", status)}
	}
}
