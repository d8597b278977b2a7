// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package auxiliary provides remote implementations of the optional
// confidence signal used by the scorer.
package auxiliary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"prose-scan/internal/detector"
	"prose-scan/internal/resilience"
)

// DefaultContextBytes is how much text either side of a finding is sent
const DefaultContextBytes = 240

// Request is the JSON body posted for each finding
type Request struct {
	Finding detector.Finding `json:"finding"`
	Before  string           `json:"before"`
	After   string           `json:"after"`
}

// Response is the JSON body expected back
type Response struct {
	Score float64 `json:"score"`
}

// HTTPSignal asks an HTTP endpoint for a second opinion on each finding
type HTTPSignal struct {
	URL          string
	Token        string
	ContextBytes int
	Client       *http.Client
}

// NewHTTPSignal creates a signal posting to url. The scorer applies its own
// deadline; timeout only bounds a single request.
func NewHTTPSignal(url, token string, timeout time.Duration) *HTTPSignal {
	return &HTTPSignal{
		URL:          url,
		Token:        token,
		ContextBytes: DefaultContextBytes,
		Client:       &http.Client{Timeout: timeout},
	}
}

// Score implements scoring.AuxiliarySignal
func (s *HTTPSignal) Score(ctx context.Context, finding detector.Finding, document string) (float64, error) {
	before, after := window(document, finding.Span, s.ContextBytes)
	payload, err := json.Marshal(Request{Finding: finding, Before: before, After: after})
	if err != nil {
		return 0, resilience.NewPermanentError(fmt.Sprintf("encoding auxiliary request: %v", err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, resilience.NewPermanentError(fmt.Sprintf("building auxiliary request: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, resilience.ClassifyError(err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return 0, err
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return 0, resilience.NewPermanentError(fmt.Sprintf("decoding auxiliary response: %v", err), err)
	}
	return out.Score, nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("auxiliary signal returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &resilience.ClassifiedError{Type: resilience.ErrorTypeRateLimit, Message: msg, Retryable: true}
	case resp.StatusCode >= 500:
		return &resilience.ClassifiedError{Type: resilience.ErrorTypeUnavailable, Message: msg, Retryable: true}
	default:
		return resilience.NewPermanentError(msg, nil)
	}
}

// window returns up to n bytes either side of span, cut on rune boundaries
func window(document string, span detector.Span, n int) (string, string) {
	if span.Start < 0 || span.End > len(document) || span.Start > span.End {
		return "", ""
	}
	start := span.Start - n
	if start < 0 {
		start = 0
	}
	for start < span.Start && !utf8.RuneStart(document[start]) {
		start++
	}
	end := span.End + n
	if end > len(document) {
		end = len(document)
	}
	for end > span.End && end < len(document) && !utf8.RuneStart(document[end]) {
		end--
	}
	return document[start:span.Start], document[span.End:end]
}
