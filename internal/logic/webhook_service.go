package logic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/internal/repository"
	"github.com/pccr10001/daqring/pkg/logger"
	"golang.org/x/sync/semaphore"
)

type WebhookService struct {
	repo   *repository.WebhookRepository
	client *http.Client
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

// NewWebhookService sends at most workers requests at a time, each bounded
// by timeout.
func NewWebhookService(repo *repository.WebhookRepository, workers int, timeout time.Duration) *WebhookService {
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookService{
		repo:   repo,
		client: &http.Client{Timeout: timeout},
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

// Dispatch notifies every enabled webhook for the segment's device. It does
// not wait for delivery.
func (s *WebhookService) Dispatch(seg *model.Segment) {
	webhooks, err := s.repo.FindEnabled(seg.Device)
	if err != nil {
		logger.Log.Errorf("Failed to fetch webhooks for device %s: %v", seg.Device, err)
		return
	}

	for _, wh := range webhooks {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx := context.Background()
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer s.sem.Release(1)
			if err := s.send(ctx, wh, seg); err != nil {
				logger.Log.Errorf("Webhook %s failed: %v", wh.URL, err)
				return
			}
			logger.Log.Infof("Webhook sent to %s", wh.URL)
		}()
	}
}

// Wait blocks until every dispatched request has finished.
func (s *WebhookService) Wait() {
	s.wg.Wait()
}

func (s *WebhookService) send(ctx context.Context, wh model.Webhook, seg *model.Segment) error {
	payload, err := buildPayload(wh, seg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func renderText(wh model.Webhook, seg *model.Segment) string {
	text := fmt.Sprintf("Segment #%d from %s: %.2fs, peak %.3f, rms %.3f",
		seg.Sequence, seg.Device, seg.Duration, seg.Peak, seg.RMS)
	if wh.Template == "" {
		return text
	}
	tmpl, err := template.New("msg").Parse(wh.Template)
	if err != nil {
		return text
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, seg); err != nil {
		return text
	}
	return buf.String()
}

func buildPayload(wh model.Webhook, seg *model.Segment) ([]byte, error) {
	content := renderText(wh, seg)

	switch wh.Platform {
	case "telegram":
		body := map[string]interface{}{
			"text":       content,
			"parse_mode": "Markdown",
		}
		if wh.ChannelID != "" {
			body["chat_id"] = wh.ChannelID
		}
		return json.Marshal(body)
	case "slack":
		return json.Marshal(map[string]interface{}{"text": content})
	default:
		if strings.Contains(wh.URL, "slack.com") {
			return json.Marshal(map[string]interface{}{"text": content})
		}
		return json.Marshal(map[string]interface{}{
			"text":    content,
			"segment": seg,
		})
	}
}
