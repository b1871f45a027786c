// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package prober

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/streamkeep/streamkeep/internal/metrics"
)

type endpointKey struct {
	host, port string
}

// endpointPool holds at most cfg.MaxEndpoints open endpoint connections,
// evicting the least-recently-used one when over capacity, and evicting any
// endpoint idle longer than cfg.IdleTTL on a background sweep.
type endpointPool struct {
	cfg Config

	mu       sync.Mutex
	entries  map[endpointKey]*list.Element // value: *poolEntry
	lru      *list.List
	stopOnce sync.Once
	stopCh   chan struct{}
}

type poolEntry struct {
	key endpointKey
	ep  *endpoint
}

func newEndpointPool(cfg Config) *endpointPool {
	if cfg.MaxEndpoints <= 0 {
		cfg.MaxEndpoints = 128
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	p := &endpointPool{
		cfg:     cfg,
		entries: make(map[endpointKey]*list.Element),
		lru:     list.New(),
		stopCh:  make(chan struct{}),
	}
	go p.sweepLoop()
	if cfg.HeartbeatEnabled {
		go p.heartbeatLoop()
	}
	return p
}

func (p *endpointPool) get(host, port string) *endpoint {
	key := endpointKey{host: host, port: port}

	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.entries[key]; ok {
		p.lru.MoveToFront(el)
		return el.Value.(*poolEntry).ep
	}

	if p.lru.Len() >= p.cfg.MaxEndpoints {
		p.evictOldestLocked()
	}

	ep := newEndpoint(host, port, p.cfg.HeartbeatEvery)
	el := p.lru.PushFront(&poolEntry{key: key, ep: ep})
	p.entries[key] = el
	metrics.ProberPoolEndpoints.Set(float64(p.lru.Len()))
	return ep
}

func (p *endpointPool) evictOldestLocked() {
	back := p.lru.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*poolEntry)
	p.lru.Remove(back)
	delete(p.entries, entry.key)
	entry.ep.close()
	metrics.ProberPoolEvictions.WithLabelValues("lru").Inc()
	metrics.ProberPoolEndpoints.Set(float64(p.lru.Len()))
}

func (p *endpointPool) sweepLoop() {
	ticker := time.NewTicker(p.cfg.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweepIdle()
		}
	}
}

func (p *endpointPool) sweepIdle() {
	cutoff := time.Now().Add(-p.cfg.IdleTTL)

	p.mu.Lock()
	var toEvict []*list.Element
	for el := p.lru.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*poolEntry)
		entry.ep.mu.Lock()
		idle := entry.ep.lastUsed.Before(cutoff)
		entry.ep.mu.Unlock()
		if idle {
			toEvict = append(toEvict, el)
		}
	}
	for _, el := range toEvict {
		entry := el.Value.(*poolEntry)
		p.lru.Remove(el)
		delete(p.entries, entry.key)
	}
	p.mu.Unlock()

	for _, el := range toEvict {
		entry := el.Value.(*poolEntry)
		entry.ep.close()
		metrics.ProberPoolEvictions.WithLabelValues("idle_ttl").Inc()
	}
	if len(toEvict) > 0 {
		p.mu.Lock()
		metrics.ProberPoolEndpoints.Set(float64(p.lru.Len()))
		p.mu.Unlock()
	}
}

func (p *endpointPool) heartbeatLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			var eps []*endpoint
			for el := p.lru.Front(); el != nil; el = el.Next() {
				eps = append(eps, el.Value.(*poolEntry).ep)
			}
			p.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			for _, ep := range eps {
				ep.heartbeat(ctx)
			}
			cancel()
		}
	}
}

func (p *endpointPool) closeAll() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	var all []*endpoint
	for el := p.lru.Front(); el != nil; el = el.Next() {
		all = append(all, el.Value.(*poolEntry).ep)
	}
	p.entries = make(map[endpointKey]*list.Element)
	p.lru.Init()
	p.mu.Unlock()

	for _, ep := range all {
		ep.close()
	}
	metrics.ProberPoolEndpoints.Set(0)
}
