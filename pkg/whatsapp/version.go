package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"golang.org/x/sync/singleflight"
)

type VersionStatus struct {
	CurrentVersion string     `json:"current_version"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// VersionRefresher keeps the WhatsApp Web version used by new connections in
// line with the one currently served by WhatsApp. Refreshes are throttled by
// minInterval and concurrent calls share a single request.
type VersionRefresher struct {
	minInterval time.Duration
	httpClient  *http.Client
	group       singleflight.Group

	mu            sync.RWMutex
	lastRefreshed *time.Time
	lastError     string
}

func NewVersionRefresher(minInterval time.Duration) *VersionRefresher {
	return &VersionRefresher{
		minInterval: minInterval,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func formatVersion(v store.WAVersionContainer) string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

func (r *VersionRefresher) Status() VersionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last *time.Time
	if r.lastRefreshed != nil {
		t := *r.lastRefreshed
		last = &t
	}
	return VersionStatus{
		CurrentVersion: formatVersion(store.GetWAVersion()),
		LastRefreshed:  last,
		LastError:      r.lastError,
	}
}

// Refresh fetches the latest version and applies it with store.SetWAVersion.
// refreshed is false when the call was throttled.
func (r *VersionRefresher) Refresh(ctx context.Context, force bool) (status VersionStatus, refreshed bool, err error) {
	if !force && r.minInterval > 0 {
		r.mu.RLock()
		last := r.lastRefreshed
		r.mu.RUnlock()
		if last != nil && time.Since(*last) < r.minInterval {
			return r.Status(), false, nil
		}
	}

	_, err, _ = r.group.Do("refresh", func() (interface{}, error) {
		latest, err := whatsmeow.GetLatestVersion(ctx, r.httpClient)
		if err == nil && latest == nil {
			err = errors.New("latest WhatsApp Web version is nil")
		}
		if err == nil {
			store.SetWAVersion(*latest)
		}
		r.record(err)
		return nil, err
	})
	return r.Status(), true, err
}

func (r *VersionRefresher) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.lastRefreshed = &now
	if err != nil {
		r.lastError = err.Error()
		return
	}
	r.lastError = ""
}
