// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

// =============================================================================
// Metrics Tests
// =============================================================================

func TestMetrics_UploadFinished(t *testing.T) {
	m := NewMetrics()

	m.UploadFinished("accepted", 100*time.Millisecond)
	m.UploadFinished("accepted", 200*time.Millisecond)
	m.UploadFinished("duplicate", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploadsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsTotal.WithLabelValues("duplicate")))
}

func TestMetrics_ExchangeLifecycle(t *testing.T) {
	m := NewMetrics()

	m.ExchangeStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))

	m.FragmentReceived(true, 300*time.Millisecond)
	m.FragmentReceived(false, 400*time.Millisecond)
	m.ExchangeFinished("complete", time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fragmentsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchangesTotal.WithLabelValues("complete")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.ExchangeStarted()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.inFlight))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.inFlight))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.UploadFinished("accepted", time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `docchat_upload_total{result="accepted"} 1`)
}

func TestMetrics_ServeStopsOnCancel(t *testing.T) {
	m := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// =============================================================================
// Tracer Tests
// =============================================================================

func TestTracer_NoopWhenDisabled(t *testing.T) {
	tracer, err := NewTracer(context.Background(), TracerConfig{})
	require.NoError(t, err)

	ctx, finish := tracer.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	finish(nil)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestTracer_StdoutExport(t *testing.T) {
	var buf bytes.Buffer
	tracer, err := NewTracer(context.Background(), TracerConfig{Stdout: true, Writer: &buf, Version: "test"})
	require.NoError(t, err)

	_, finish := tracer.StartSpan(context.Background(), "backend.upload", attribute.String("file", "notes.txt"))
	finish(errors.New("boom"))
	require.NoError(t, tracer.Shutdown(context.Background()))

	out := buf.String()
	assert.True(t, strings.Contains(out, "backend.upload"), "span name missing from %s", out)
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "boom")
}
