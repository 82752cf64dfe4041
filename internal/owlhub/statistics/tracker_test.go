/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package statistics

import (
	"strings"
	"testing"
	"time"
)

func TestTracker_GetStatisticsAggregatesEvents(t *testing.T) {
	tracker := NewTracker()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time { return base })

	tracker.RecordDownload("acme-labs", "pdf-summarizer", "user-1")
	tracker.RecordDownload("acme-labs", "pdf-summarizer", "user-2")
	tracker.RecordInstall("acme-labs", "pdf-summarizer", "user-1")
	tracker.RecordInstall("acme-labs", "pdf-summarizer", "user-1") // same user, still 1 active installer

	rec := tracker.GetStatistics("acme-labs", "pdf-summarizer", nil)
	if rec.TotalDownloads != 2 || rec.DownloadsLast30d != 2 {
		t.Fatalf("unexpected download counts: %+v", rec)
	}
	if rec.TotalInstalls != 2 || rec.ActiveInstalls != 1 {
		t.Fatalf("unexpected install counts: %+v", rec)
	}
}

func TestTracker_DownloadsLast30dExcludesOldEvents(t *testing.T) {
	tracker := NewTracker()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time { return old })
	tracker.RecordDownload("acme-labs", "pdf-summarizer", "user-1")

	now := old.Add(60 * 24 * time.Hour)
	tracker.SetClock(func() time.Time { return now })
	tracker.RecordDownload("acme-labs", "pdf-summarizer", "user-2")

	rec := tracker.GetStatistics("acme-labs", "pdf-summarizer", nil)
	if rec.TotalDownloads != 2 {
		t.Fatalf("expected 2 total downloads, got %d", rec.TotalDownloads)
	}
	if rec.DownloadsLast30d != 1 {
		t.Fatalf("expected 1 download in the last 30 days, got %d", rec.DownloadsLast30d)
	}
}

type fakeAugmenter struct{ extra int }

func (a fakeAugmenter) AdditionalDownloads(string, string) (int, error) { return a.extra, nil }

func TestTracker_GetStatisticsFoldsInAugmenter(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordDownload("acme-labs", "pdf-summarizer", "user-1")
	rec := tracker.GetStatistics("acme-labs", "pdf-summarizer", fakeAugmenter{extra: 10})
	if rec.TotalDownloads != 11 {
		t.Fatalf("expected augmented total of 11, got %d", rec.TotalDownloads)
	}
}

func TestTracker_ExportJSONAndCSV(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordDownload("acme-labs", "pdf-summarizer", "user-1")
	tracker.RecordInstall("acme-labs", "pdf-summarizer", "user-1")

	jsonData, err := tracker.Export("json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(jsonData), "pdf-summarizer") {
		t.Fatalf("expected json export to contain skill name, got %s", jsonData)
	}

	csvData, err := tracker.Export("csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected a header row and one data row, got %d lines: %s", len(lines), csvData)
	}
}
