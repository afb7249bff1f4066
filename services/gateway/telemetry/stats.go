// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// recentRequestsCap bounds the ring of recent request records.
const recentRequestsCap = 100

// chartWindowHours bounds the hourly activity series returned for charts.
const chartWindowHours = 12

// RequestRecord is one processed request as seen by the dashboard surface.
// It carries counts, scores, and identifiers only — never message content.
type RequestRecord struct {
	ID             string  `json:"id"`
	Timestamp      string  `json:"timestamp"`
	Status         string  `json:"status"` // clean, redacted, blocked, error
	PIICount       int     `json:"pii_count"`
	InjectionScore float64 `json:"injection_score"`
	LatencyMs      float64 `json:"latency_ms"`
	Model          string  `json:"model"`
}

// DashboardStats aggregates monotonic counters since process start.
type DashboardStats struct {
	TotalRequests     int    `json:"total_requests"`
	BlockedRequests   int    `json:"blocked_requests"`
	PIIDetected       int    `json:"pii_detected"`
	InjectionDetected int    `json:"injection_detected"`
	StartTime         string `json:"start_time"`
}

// ChartPoint is one hourly bucket of request activity.
type ChartPoint struct {
	Time     string `json:"time"`
	Requests int    `json:"requests"`
	Blocked  int    `json:"blocked"`
}

type hourlyBucket struct {
	total   int
	blocked int
}

// StatsStore is the process-wide in-memory statistics collaborator backing
// the dashboard JSON surface. It keeps monotonic counters, a bounded ring
// of recent request records, and hourly activity buckets.
//
// Description:
//
//	A production deployment would back this with Redis or Postgres; the
//	gateway deliberately keeps it in memory because it stores no sensitive
//	content and its loss on restart is acceptable.
//
// Thread Safety: Safe for concurrent use via sync.Mutex. It is the only
// process-wide mutable structure touched by request handling.
type StatsStore struct {
	mu             sync.Mutex
	stats          DashboardStats
	recent         []RequestRecord // newest first, capped at recentRequestsCap
	hourlyActivity map[string]*hourlyBucket

	// injectionThreshold decides when a record counts as a detected
	// injection for the aggregate counter.
	injectionThreshold float64
}

// NewStatsStore creates an empty store.
//
// Inputs:
//   - injectionThreshold: Minimum injection score for a record to count
//     toward the injection_detected aggregate.
func NewStatsStore(injectionThreshold float64) *StatsStore {
	return &StatsStore{
		stats: DashboardStats{
			StartTime: time.Now().UTC().Format(time.RFC3339),
		},
		hourlyActivity:     make(map[string]*hourlyBucket),
		injectionThreshold: injectionThreshold,
	}
}

// RecordRequest folds one request record into the counters, the recent
// ring, and the hourly activity buckets.
func (s *StatsStore) RecordRequest(record RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalRequests++
	if record.Status == "blocked" {
		s.stats.BlockedRequests++
	}
	if record.PIICount > 0 {
		s.stats.PIIDetected += record.PIICount
	}
	// >= so a request that fires exactly at the filter threshold counts.
	if record.InjectionScore >= s.injectionThreshold {
		s.stats.InjectionDetected++
	}

	// Newest first, bounded ring.
	s.recent = append([]RequestRecord{record}, s.recent...)
	if len(s.recent) > recentRequestsCap {
		s.recent = s.recent[:recentRequestsCap]
	}

	hourKey := record.Timestamp
	if len(hourKey) >= 13 {
		hourKey = hourKey[:13] // "2026-08-26T10"
	}
	bucket, ok := s.hourlyActivity[hourKey]
	if !ok {
		bucket = &hourlyBucket{}
		s.hourlyActivity[hourKey] = bucket
	}
	bucket.total++
	if record.Status == "blocked" {
		bucket.blocked++
	}
}

// Stats returns a copy of the aggregate counters.
func (s *StatsStore) Stats() DashboardStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Activity returns a copy of the recent request records, newest first.
func (s *StatsStore) Activity() []RequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RequestRecord, len(s.recent))
	copy(out, s.recent)
	return out
}

// ChartData returns the last chartWindowHours hourly buckets in ascending
// hour order, formatted for the dashboard chart.
func (s *StatsStore) ChartData() []ChartPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.hourlyActivity))
	for k := range s.hourlyActivity {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > chartWindowHours {
		keys = keys[len(keys)-chartWindowHours:]
	}

	points := make([]ChartPoint, 0, len(keys))
	for _, key := range keys {
		label := key
		if idx := strings.IndexByte(key, 'T'); idx >= 0 && idx+1 < len(key) {
			label = key[idx+1:] + ":00"
		}
		bucket := s.hourlyActivity[key]
		points = append(points, ChartPoint{
			Time:     label,
			Requests: bucket.total,
			Blocked:  bucket.blocked,
		})
	}
	return points
}
