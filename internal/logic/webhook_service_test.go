package logic

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newWebhookRepo(t *testing.T) *repository.WebhookRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Webhook{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewWebhookRepository(db)
}

func TestDispatchPostsGenericAndTemplatedPayloads(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string]map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		bodies[r.URL.Path] = body
		mu.Unlock()
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	repo := newWebhookRepo(t)
	require.NoError(t, repo.Create(&model.Webhook{URL: srv.URL + "/generic", Enabled: true}))
	require.NoError(t, repo.Create(&model.Webhook{URL: srv.URL + "/tg", Device: "dev0", Platform: "telegram", ChannelID: "99", Template: "seg {{.Sequence}} on {{.Device}}", Enabled: true}))
	require.NoError(t, repo.Create(&model.Webhook{URL: srv.URL + "/other", Device: "dev1", Enabled: true}))

	svc := NewWebhookService(repo, 2, time.Second)
	svc.Dispatch(&model.Segment{Device: "dev0", Sequence: 3, Samples: 10})
	svc.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies["/generic"], "segment")
	assert.Equal(t, "seg 3 on dev0", bodies["/tg"]["text"])
	assert.Equal(t, "99", bodies["/tg"]["chat_id"])
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}))
	defer srv.Close()

	repo := newWebhookRepo(t)
	for range 6 {
		require.NoError(t, repo.Create(&model.Webhook{URL: srv.URL, Enabled: true}))
	}

	svc := NewWebhookService(repo, 2, time.Second)
	svc.Dispatch(&model.Segment{Device: "dev0"})
	svc.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestSendReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewWebhookService(nil, 1, time.Second)
	err := svc.send(t.Context(), model.Webhook{URL: srv.URL}, &model.Segment{})
	assert.ErrorContains(t, err, "502")
}

func TestRenderTextFallsBackOnBadTemplate(t *testing.T) {
	seg := &model.Segment{Device: "d", Sequence: 1, Duration: 1.5}
	assert.Equal(t, "Segment #1 from d: 1.50s, peak 0.000, rms 0.000", renderText(model.Webhook{Template: "{{.Nope"}, seg))
	assert.Equal(t, "Segment #1 from d: 1.50s, peak 0.000, rms 0.000", renderText(model.Webhook{}, seg))
}
