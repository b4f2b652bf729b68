// Package monitor drives the periodic pipeline: screening passes per
// timeframe, alerting on high-score hits, auto-trade passes and retention
// sweeps.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"altcoin-screener/config"
	"altcoin-screener/internal/cache"
	"altcoin-screener/internal/database"
	"altcoin-screener/internal/events"
	"altcoin-screener/internal/notification"
	"altcoin-screener/internal/screener"
	"altcoin-screener/internal/simtrading"
	"altcoin-screener/internal/tsdb"
)

type Monitor struct {
	screener *screener.Screener
	engine   *simtrading.Engine
	repo     *database.Repository
	store    *tsdb.Store
	gate     *notification.Gate
	notify   *notification.Manager
	hotCache *cache.Service
	bus      *events.Bus
	cfg      config.MonitorConfig
	log      zerolog.Logger

	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
	lastSweep time.Time
}

func New(scr *screener.Screener, engine *simtrading.Engine, repo *database.Repository,
	store *tsdb.Store, gate *notification.Gate, notify *notification.Manager,
	hotCache *cache.Service, bus *events.Bus, cfg config.MonitorConfig, logger zerolog.Logger) *Monitor {

	return &Monitor{
		screener: scr,
		engine:   engine,
		repo:     repo,
		store:    store,
		gate:     gate,
		notify:   notify,
		hotCache: hotCache,
		bus:      bus,
		cfg:      cfg,
		log:      logger.With().Str("component", "monitor").Logger(),
		stopChan: make(chan struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx)
	m.log.Info().
		Strs("timeframes", m.cfg.Timeframes).
		Dur("interval", m.cfg.IntervalDuration()).
		Msg("monitor started")
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	m.log.Info().Msg("monitor stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.IntervalDuration())
	defer ticker.Stop()

	m.RunCycle(ctx)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle executes one full pipeline pass. Each stage failure is logged and
// the cycle continues; one broken timeframe must not stall the others.
func (m *Monitor) RunCycle(ctx context.Context) {
	started := time.Now()

	for _, timeframe := range m.cfg.Timeframes {
		results, err := m.screener.Screen(ctx, timeframe)
		if err != nil {
			m.log.Error().Err(err).Str("timeframe", timeframe).Msg("screening pass failed")
			continue
		}

		m.hotCache.StoreTopResults(ctx, timeframe, results)
		m.bus.Publish(events.Event{
			Type: events.EventScreenerUpdate,
			Data: map[string]interface{}{
				"timeframe": timeframe,
				"results":   len(results),
			},
		})

		m.alertOnResults(ctx, timeframe, results)
	}

	m.engine.AutoTradeAll(ctx)
	m.maybeSweep(ctx)

	m.bus.Publish(events.Event{
		Type: events.EventMonitorCycle,
		Data: map[string]interface{}{
			"elapsed_ms": time.Since(started).Milliseconds(),
		},
	})
}

// alertOnResults sends a single top-N digest when the pass produced hits at
// or above the alert threshold and the notification gate allows it.
func (m *Monitor) alertOnResults(ctx context.Context, timeframe string, results []database.ScreeningResult) {
	if !m.notify.HasChannels() {
		return
	}

	var hits []database.ScreeningResult
	for _, r := range results {
		if r.TotalScore >= m.cfg.AlertThreshold {
			hits = append(hits, r)
		}
	}
	if len(hits) == 0 {
		return
	}
	if len(hits) > m.cfg.NotifyTopN {
		hits = hits[:m.cfg.NotifyTopN]
	}

	settings, err := m.repo.GetNotificationSettings(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("loading notification settings failed")
		return
	}

	now := time.Now()
	if ok, reason := m.gate.CanSend(settings, now); !ok {
		m.log.Debug().Str("reason", reason).Str("timeframe", timeframe).Msg("alert suppressed")
		return
	}

	subject := fmt.Sprintf("Screener: %d hits on %s", len(hits), timeframe)
	message := formatDigest(hits)

	delivered := m.notify.Send(ctx, subject, message)
	if len(delivered) == 0 {
		return
	}

	if err := m.repo.RecordNotificationSent(ctx, settings, now); err != nil {
		m.log.Warn().Err(err).Msg("recording notification send failed")
	}
	if err := m.repo.SaveAlert(ctx, &database.Alert{
		Symbol:     hits[0].Symbol,
		Timeframe:  timeframe,
		TotalScore: hits[0].TotalScore,
		Message:    message,
		Channels:   delivered,
	}); err != nil {
		m.log.Warn().Err(err).Msg("saving alert log failed")
	}

	m.bus.Publish(events.Event{
		Type: events.EventAlertSent,
		Data: map[string]interface{}{
			"timeframe": timeframe,
			"hits":      len(hits),
			"channels":  delivered,
		},
	})
}

// formatDigest renders the alert body, one line per hit.
func formatDigest(hits []database.ScreeningResult) string {
	var b strings.Builder
	for i, r := range hits {
		fmt.Fprintf(&b, "%d. %s score %.1f (beta %.0f, vol %.0f, tech %.0f)",
			i+1, r.Symbol, r.TotalScore, r.BetaScore, r.VolumeScore, r.TechnicalScore)
		if r.VolumeSurge {
			b.WriteString(" [volume surge]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// maybeSweep runs retention deletes at most once a day.
func (m *Monitor) maybeSweep(ctx context.Context) {
	m.mu.Lock()
	due := time.Since(m.lastSweep) >= 24*time.Hour
	if due {
		m.lastSweep = time.Now()
	}
	m.mu.Unlock()
	if !due {
		return
	}

	candleCutoff := time.Now().AddDate(0, 0, -m.cfg.RetentionDays)
	if n, err := m.store.DeleteOlderThan(ctx, candleCutoff); err != nil {
		m.log.Error().Err(err).Msg("candle retention sweep failed")
	} else if n > 0 {
		m.log.Info().Int64("deleted", n).Msg("candle retention sweep finished")
	}

	snapshotCutoff := time.Now().AddDate(0, 0, -m.cfg.SnapshotDays)
	if n, err := m.repo.CleanupScreeningResults(ctx, snapshotCutoff); err != nil {
		m.log.Error().Err(err).Msg("snapshot retention sweep failed")
	} else if n > 0 {
		m.log.Info().Int64("deleted", n).Msg("snapshot retention sweep finished")
	}
}
