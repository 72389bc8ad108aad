package integrity

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Forwarder re-posts an already-acknowledged webhook to its internal
// _work endpoint. Slack requires a synchronous ack within seconds, so
// the public handlers ack first and hand the real work to a second
// request carrying the route's nonce.
type Forwarder struct {
	nonces *NonceStore
	client *http.Client

	// baseURL overrides scheme+host; empty means https://<request host>.
	baseURL string
}

func NewForwarder(nonces *NonceStore, baseURL string) *Forwarder {
	return &Forwarder{
		nonces:  nonces,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

// Forward sends rawBody and the original headers to <path>_work. The
// work path's nonce is minted here; the work handler verifies it.
func (f *Forwarder) Forward(ctx context.Context, r *http.Request, rawBody []byte) error {
	workPath := r.URL.Path + "_work"

	base := f.baseURL
	if base == "" {
		base = "https://" + r.Host
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+workPath, bytes.NewReader(rawBody))
	if err != nil {
		return fmt.Errorf("forward %s: %w", workPath, err)
	}
	req.Header = r.Header.Clone()
	req.Header.Set(NonceHeader, f.nonces.Mint(workPath))

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward %s: %w", workPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Printf("work endpoint %s returned %d", workPath, resp.StatusCode)
	}
	return nil
}
