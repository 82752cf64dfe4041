/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package statistics tracks per-skill download/install activity and can
// export it as JSON or CSV, augmented by a GitHub release poller.
package statistics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Event is one recorded download or install for a skill.
type Event struct {
	Publisher string
	Name      string
	UserID    string
	Kind      string // "download" | "install"
	At        time.Time
}

// Record is the aggregated view for one (publisher, name) pair.
type Record struct {
	Publisher          string    `json:"publisher"`
	Name               string    `json:"name"`
	TotalDownloads     int       `json:"total_downloads"`
	DownloadsLast30d   int       `json:"downloads_last_30d"`
	TotalInstalls      int       `json:"total_installs"`
	ActiveInstalls     int       `json:"active_installs"`
	LastUpdated        time.Time `json:"last_updated"`
}

// EventSink persists tracker events to a durable backend, an optional seam
// the in-memory event log writes through in addition to its own slice.
type EventSink interface {
	Record(e Event) error
}

// Tracker is a mutex-guarded in-memory event log plus the aggregated
// per-skill view derived from it.
type Tracker struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
	sink   EventSink
}

// NewTracker constructs an empty Tracker using wall-clock time.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// SetSink registers an optional durable sink every recorded event is also
// forwarded to; nil disables persistence. A sink write failure never fails
// the in-memory record, since the tracker's own event log is the source of
// truth GetStatistics reads from.
func (t *Tracker) SetSink(sink EventSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// SetClock overrides the time source, for deterministic tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// RecordDownload appends one download event.
func (t *Tracker) RecordDownload(publisher, name, userID string) {
	t.record(publisher, name, userID, "download")
}

// RecordInstall appends one install event.
func (t *Tracker) RecordInstall(publisher, name, userID string) {
	t.record(publisher, name, userID, "install")
}

func (t *Tracker) record(publisher, name, userID, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := Event{Publisher: publisher, Name: name, UserID: userID, Kind: kind, At: t.now()}
	t.events = append(t.events, e)
	if t.sink != nil {
		_ = t.sink.Record(e)
	}
}

// GitHubAugmenter supplies release-download counts to fold into statistics
// when a skill is backed by a GitHub repository; nil is a valid no-op.
type GitHubAugmenter interface {
	AdditionalDownloads(publisher, name string) (int, error)
}

// GetStatistics aggregates the event log for one (publisher, name), folding
// in additional downloads from augmenter when supplied.
func (t *Tracker) GetStatistics(publisher, name string, augmenter GitHubAugmenter) Record {
	t.mu.Lock()
	events := append([]Event(nil), t.events...)
	now := t.now()
	t.mu.Unlock()

	rec := Record{Publisher: publisher, Name: name}
	activeInstallers := map[string]bool{}
	cutoff := now.Add(-30 * 24 * time.Hour)

	for _, e := range events {
		if e.Publisher != publisher || e.Name != name {
			continue
		}
		switch e.Kind {
		case "download":
			rec.TotalDownloads++
			if e.At.After(cutoff) {
				rec.DownloadsLast30d++
			}
		case "install":
			rec.TotalInstalls++
			if e.At.After(cutoff) {
				activeInstallers[e.UserID] = true
			}
		}
		if e.At.After(rec.LastUpdated) {
			rec.LastUpdated = e.At
		}
	}
	rec.ActiveInstalls = len(activeInstallers)

	if augmenter != nil {
		if extra, err := augmenter.AdditionalDownloads(publisher, name); err == nil {
			rec.TotalDownloads += extra
			rec.DownloadsLast30d += extra
		}
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = now
	}
	return rec
}

// Export renders every tracked (publisher, name) pair's statistics in the
// requested format ("json" or "csv").
func (t *Tracker) Export(format string) ([]byte, error) {
	t.mu.Lock()
	seen := map[string]struct{ publisher, name string }{}
	for _, e := range t.events {
		seen[e.Publisher+"/"+e.Name] = struct{ publisher, name string }{e.Publisher, e.Name}
	}
	t.mu.Unlock()

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		pn := seen[k]
		records = append(records, t.GetStatistics(pn.publisher, pn.name, nil))
	}

	switch strings.ToLower(format) {
	case "csv":
		return exportCSV(records)
	default:
		return json.Marshal(records)
	}
}

func exportCSV(records []Record) ([]byte, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"publisher", "name", "total_downloads", "downloads_last_30d", "total_installs", "active_installs", "last_updated"}); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.Publisher, r.Name,
			fmt.Sprint(r.TotalDownloads), fmt.Sprint(r.DownloadsLast30d),
			fmt.Sprint(r.TotalInstalls), fmt.Sprint(r.ActiveInstalls),
			r.LastUpdated.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}
