package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/pkg/version"
)

// ErrForwardNotConfigured is returned when no upstream URL is set.
var ErrForwardNotConfigured = errors.New("snapshot forwarding is not configured")

// ForwardResult describes the upstream reply to a forwarded snapshot.
type ForwardResult struct {
	StatusCode  int
	Response    any
	RecordsSent int
}

// Forwarder posts the snapshot document to an external collector as the
// form field "data".
type Forwarder struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewForwarder(url string, timeout time.Duration, logger *zap.Logger) *Forwarder {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.Current("therapy-server").UserAgent())

	return &Forwarder{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

func (f *Forwarder) Configured() bool {
	return f != nil && f.url != ""
}

func (f *Forwarder) Forward(ctx context.Context, snap *Snapshot) (*ForwardResult, error) {
	if !f.Configured() {
		return nil, ErrForwardNotConfigured
	}

	f.logger.Info("forwarding snapshot",
		zap.String("url", f.url),
		zap.Int("records", snap.Count))

	resp, err := f.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"data": string(snap.Data)}).
		Post(f.url)
	if err != nil {
		f.logger.Error("snapshot forward failed", zap.Error(err))
		return nil, fmt.Errorf("failed to forward snapshot: %w", err)
	}

	var body any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		body = map[string]string{"raw": resp.String()}
	}

	f.logger.Info("snapshot forwarded",
		zap.Int("status_code", resp.StatusCode()),
		zap.Int("records", snap.Count))

	return &ForwardResult{
		StatusCode:  resp.StatusCode(),
		Response:    body,
		RecordsSent: snap.Count,
	}, nil
}
