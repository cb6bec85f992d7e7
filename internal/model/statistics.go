// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"
)

// Usage is the token accounting a server reports once a generation ends.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	EvalDuration     time.Duration
	TokensPerSecond  float64
}

// Statistics holds timing and fragment count information for a generation.
type Statistics struct {
	// Timestamps
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	// Streamed fragments. Several fragments may make up one token.
	Fragments int

	// Server accounting, nil when the generator reports none
	Usage *Usage

	// Derived metrics (computed on Finalize)
	TTFT            time.Duration
	TotalDuration   time.Duration
	TokensPerSecond float64
}

// NewStatistics creates a new Statistics with the start time set.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
	}
}

// RecordFragment counts one fragment and records the time of the first.
func (s *Statistics) RecordFragment() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
	s.Fragments++
}

// RecordUsage stores the server's token counts for the generation.
func (s *Statistics) RecordUsage(u Usage) {
	s.Usage = &u
}

// Finalize computes the final statistics. The rate comes from the server's
// eval timings when present; otherwise it is fragments per second of
// streaming, excluding the wait for the first fragment.
func (s *Statistics) Finalize() {
	s.EndTime = time.Now()
	s.TotalDuration = s.EndTime.Sub(s.StartTime)

	switch {
	case s.Usage != nil && s.Usage.TokensPerSecond > 0:
		s.TokensPerSecond = s.Usage.TokensPerSecond
	case !s.FirstTokenTime.IsZero():
		if d := s.EndTime.Sub(s.FirstTokenTime); d > 0 {
			s.TokensPerSecond = float64(s.Fragments) / d.Seconds()
		}
	}
}

// Format returns a formatted string of the statistics.
// With server counts: "2.5s | 128 tokens | 51.2 tok/s | TTFT 234ms".
// Without them the count and rate are labelled as fragments.
func (s *Statistics) Format() string {
	unit, count := "fragments", s.Fragments
	rate := "frag/s"
	if s.Usage != nil {
		unit, count, rate = "tokens", s.Usage.CompletionTokens, "tok/s"
	}
	return formatDuration(s.TotalDuration) + " | " +
		fmt.Sprintf("%d %s | %.1f %s | TTFT %dms",
			count, unit, s.TokensPerSecond, rate, s.TTFT.Milliseconds())
}

// formatDuration formats a duration as milliseconds below one second and
// as seconds with one decimal place above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
