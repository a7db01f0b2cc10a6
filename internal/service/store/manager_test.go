package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"FlowRadar/internal/domain/models"
)

func event(ts float64, level models.SignalLevel, typ models.SignalType, conf float64, bucket string) *models.SignalEvent {
	return models.NewSignalEvent(ts, "DOGE/USDT", models.SideBuy, level, typ, conf, 0.15, bucket)
}

func keyedEvent(key string, ts float64, level models.SignalLevel, conf float64) *models.SignalEvent {
	ev := event(ts, level, models.TypeIceberg, conf, "0.150")
	ev.Key = key
	return ev
}

func TestAddRejectsInvalid(t *testing.T) {
	m := NewManager()
	ev := event(100, models.LevelConfirmed, models.TypeIceberg, 60, "0.150")
	ev.Side = "HOLD"
	err := m.Add(ev)
	if err == nil {
		t.Fatalf("invalid event accepted")
	}
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if m.Size() != 0 {
		t.Fatalf("rejected event entered the store")
	}
}

func TestReplaceOnLevelUpgrade(t *testing.T) {
	// same key, CONFIRMED arrives after ACTIVITY: replacement, not suppression
	m := NewManager()
	key := "iceberg:DOGE/USDT:BUY:ACTIVITY:0.150"
	if err := m.Add(keyedEvent(key, 100, models.LevelActivity, 65)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add(keyedEvent(key, 100, models.LevelConfirmed, 65)); err != nil {
		t.Fatalf("add upgrade: %v", err)
	}
	if m.Size() != 1 {
		t.Fatalf("size = %d, want 1", m.Size())
	}
	top := m.Top(1)
	if top[0].Level != models.LevelConfirmed {
		t.Fatalf("stored level = %s, want CONFIRMED", top[0].Level)
	}
	if m.SuppressedCount(key) != 0 {
		t.Fatalf("suppressed = %d, want 0 (replacement)", m.SuppressedCount(key))
	}
}

func TestSuppressOnDowngrade(t *testing.T) {
	m := NewManager()
	key := "iceberg:DOGE/USDT:BUY:CONFIRMED:0.150"
	if err := m.Add(keyedEvent(key, 100, models.LevelConfirmed, 85)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add(keyedEvent(key, 100, models.LevelActivity, 95)); err != nil {
		t.Fatalf("add downgrade: %v", err)
	}
	if m.Size() != 1 {
		t.Fatalf("size = %d, want 1", m.Size())
	}
	top := m.Top(1)
	if top[0].Level != models.LevelConfirmed || top[0].Confidence != 85 {
		t.Fatalf("stored = %s/%v, want CONFIRMED/85", top[0].Level, top[0].Confidence)
	}
	if m.SuppressedCount(key) != 1 {
		t.Fatalf("suppressed = %d, want 1", m.SuppressedCount(key))
	}
}

func TestEqualSortKeyHigherConfidenceWins(t *testing.T) {
	m := NewManager()
	key := "iceberg:DOGE/USDT:BUY:CONFIRMED:0.150"
	if err := m.Add(keyedEvent(key, 100, models.LevelConfirmed, 60)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add(keyedEvent(key, 100, models.LevelConfirmed, 80)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := m.Top(1)[0].Confidence; got != 80 {
		t.Fatalf("stored confidence = %v, want 80", got)
	}
	// full tie keeps first-seen and suppresses
	if err := m.Add(keyedEvent(key, 100, models.LevelConfirmed, 80)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.SuppressedCount(key) != 1 {
		t.Fatalf("suppressed = %d, want 1", m.SuppressedCount(key))
	}
}

func TestUpgradeIsArrivalOrderIndependent(t *testing.T) {
	key := "whale:DOGE/USDT:BUY:CONFIRMED:market"
	build := func(order []*models.SignalEvent) *models.SignalEvent {
		m := NewManager()
		for _, ev := range order {
			if err := m.Add(ev); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		return m.Top(1)[0]
	}
	mk := func(level models.SignalLevel, conf float64) *models.SignalEvent {
		ev := models.NewSignalEvent(100, "DOGE/USDT", models.SideBuy, level, models.TypeWhale, conf, 0.15, "market")
		ev.Key = key
		return ev
	}
	a := build([]*models.SignalEvent{mk(models.LevelConfirmed, 70), mk(models.LevelCritical, 50)})
	b := build([]*models.SignalEvent{mk(models.LevelCritical, 50), mk(models.LevelConfirmed, 70)})
	if a.Level != models.LevelCritical || b.Level != models.LevelCritical {
		t.Fatalf("retained levels %s/%s, want CRITICAL both orders", a.Level, b.Level)
	}
}

func TestTopOrdersBySortKey(t *testing.T) {
	m := NewManager()
	events := []*models.SignalEvent{
		event(100, models.LevelActivity, models.TypeKGod, 10, "a"),
		event(100, models.LevelCritical, models.TypeWhale, 50, "b"),
		event(100, models.LevelCritical, models.TypeLiquidation, 50, "c"),
		event(100, models.LevelConfirmed, models.TypeLiquidation, 90, "d"),
	}
	for _, ev := range events {
		if err := m.Add(ev); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	top := m.Top(4)
	wantTypes := []models.SignalType{models.TypeLiquidation, models.TypeWhale, models.TypeLiquidation, models.TypeKGod}
	wantLevels := []models.SignalLevel{models.LevelCritical, models.LevelCritical, models.LevelConfirmed, models.LevelActivity}
	for i := range top {
		if top[i].Type != wantTypes[i] || top[i].Level != wantLevels[i] {
			t.Fatalf("top[%d] = %s/%s, want %s/%s", i, top[i].Level, top[i].Type, wantLevels[i], wantTypes[i])
		}
	}
	if got := m.Top(2); len(got) != 2 {
		t.Fatalf("Top(2) length = %d", len(got))
	}
	if m.Size() != 4 {
		t.Fatalf("Top mutated the store: size %d", m.Size())
	}
}

func TestTopReturnsCopies(t *testing.T) {
	m := NewManager()
	if err := m.Add(event(100, models.LevelConfirmed, models.TypeIceberg, 60, "0.150")); err != nil {
		t.Fatalf("add: %v", err)
	}
	m.Top(1)[0].Confidence = 5
	if got := m.Top(1)[0].Confidence; got != 60 {
		t.Fatalf("caller mutation reached the store: %v", got)
	}
}

func TestCapacityEvictionReconcilesIndex(t *testing.T) {
	m := NewManager(WithCapacity(1000))
	keys := make([]string, 0, 1001)
	for i := 0; i < 1001; i++ {
		ev := event(float64(i), models.LevelConfirmed, models.TypeIceberg, 60, fmt.Sprintf("b%04d", i))
		keys = append(keys, ev.Key)
		if err := m.Add(ev); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if m.Size() != 1000 {
		t.Fatalf("size = %d, want 1000", m.Size())
	}
	if m.ContainsKey(keys[0]) {
		t.Fatalf("evicted key still indexed")
	}
	for _, key := range keys[1:] {
		if !m.ContainsKey(key) {
			t.Fatalf("live key %s missing from index", key)
		}
	}
	stats := m.Stats()
	if stats.Evicted != 1 {
		t.Fatalf("evicted counter = %d, want 1", stats.Evicted)
	}
}

func TestIndexMatchesBufferAfterChurn(t *testing.T) {
	m := NewManager(WithCapacity(8))
	for i := 0; i < 50; i++ {
		ev := event(float64(i), models.LevelConfirmed, models.TypeIceberg, 60, fmt.Sprintf("b%02d", i%12))
		if err := m.Add(ev); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	events := m.Snapshot("")
	if len(events) != m.Size() {
		t.Fatalf("snapshot %d entries, size %d", len(events), m.Size())
	}
	for _, ev := range events {
		if !m.ContainsKey(ev.Key) {
			t.Fatalf("stored key %s missing from index", ev.Key)
		}
	}
}

func TestFlush(t *testing.T) {
	m := NewManager()
	for i := 0; i < 3; i++ {
		if err := m.Add(event(float64(i), models.LevelConfirmed, models.TypeIceberg, 60, fmt.Sprintf("b%d", i))); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	events := m.Flush()
	if len(events) != 3 {
		t.Fatalf("flush returned %d events, want 3", len(events))
	}
	if m.Size() != 0 {
		t.Fatalf("store not empty after flush: %d", m.Size())
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].TS < events[i].TS {
			t.Fatalf("flush output not priority sorted")
		}
	}
}

func TestDedupeByWindow(t *testing.T) {
	now := 10_000.0
	m := NewManager(WithClock(func() float64 { return now }))
	old := event(now-400, models.LevelConfirmed, models.TypeIceberg, 60, "old")
	fresh := event(now-100, models.LevelConfirmed, models.TypeWhale, 60, "fresh")
	if err := m.Add(old); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add(fresh); err != nil {
		t.Fatalf("add: %v", err)
	}
	if dropped := m.DedupeByWindow(300); dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if m.ContainsKey(old.Key) {
		t.Fatalf("stale key survived dedupe")
	}
	if !m.ContainsKey(fresh.Key) || m.Size() != 1 {
		t.Fatalf("fresh key lost in dedupe")
	}
}

func TestStats(t *testing.T) {
	m := NewManager()
	if err := m.Add(event(100, models.LevelCritical, models.TypeLiquidation, 80, "a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	sell := models.NewSignalEvent(110, "DOGE/USDT", models.SideSell, models.LevelConfirmed, models.TypeWhale, 70, 0.15, "b")
	if err := m.Add(sell); err != nil {
		t.Fatalf("add: %v", err)
	}
	stats := m.Stats()
	if stats.Size != 2 || stats.ByLevel[models.LevelCritical] != 1 || stats.ByType[models.TypeWhale] != 1 || stats.BySide[models.SideSell] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSymbols(t *testing.T) {
	m := NewManager()
	if err := m.Add(event(100, models.LevelConfirmed, models.TypeIceberg, 60, "a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	btc := models.NewSignalEvent(100, "BTC/USDT", models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 61000, "a")
	if err := m.Add(btc); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := m.Symbols(); len(got) != 2 {
		t.Fatalf("symbols = %v, want 2 entries", got)
	}
}

func TestConcurrentAddAndDrain(t *testing.T) {
	m := NewManager(WithCapacity(256))
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ev := event(float64(i), models.LevelConfirmed, models.TypeIceberg, 60, fmt.Sprintf("p%d-%03d", p, i))
				if err := m.Add(ev); err != nil {
					t.Errorf("add: %v", err)
					return
				}
			}
		}(p)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			m.Top(10)
			m.Stats()
		}
	}()
	wg.Wait()
	<-done

	events := m.Snapshot("")
	if len(events) != m.Size() {
		t.Fatalf("index/buffer diverged under concurrency: %d vs %d", len(events), m.Size())
	}
	for _, ev := range events {
		if !m.ContainsKey(ev.Key) {
			t.Fatalf("key %s missing from index", ev.Key)
		}
	}
}
