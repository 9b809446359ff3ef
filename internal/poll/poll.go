// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package poll waits for a responsive MTR by repeatedly opening the transport
// and asking for a status message.
package poll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/emitor/internal/config"
	"github.com/Thermoquad/emitor/pkg/mtr"
)

// ErrUnresponsive means no status response arrived before the polling timeout.
var ErrUnresponsive = errors.New("mtr unresponsive")

// Conn is an open transport that must be closed by its owner.
type Conn interface {
	mtr.Transport
	io.Closer
}

// Opener opens a fresh transport for one polling attempt.
type Opener func() (Conn, error)

// Poller retries status requests until the device answers.
type Poller struct {
	open    Opener
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
	opts    []mtr.Option
}

// New creates a Poller. Attempts are spaced cfg.RetryWait apart; a zero
// cfg.Timeout polls until ctx is done. opts are passed to every mtr.Reader.
func New(open Opener, cfg config.PollConfig, logger *zap.Logger, opts ...mtr.Option) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		open:    open,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Every(cfg.RetryWait), 1),
		logger:  logger,
		opts:    append([]mtr.Option{mtr.WithLogger(logger)}, opts...),
	}
}

// WaitForStatus opens the transport and sends the status command until a
// response of exactly one status message arrives. The transport of the
// successful attempt is returned open; every other attempt's transport is closed.
// It fails with ErrUnresponsive when the polling timeout passes, or with the
// context error when ctx ends first.
func (p *Poller) WaitForStatus(ctx context.Context) (Conn, *mtr.StatusMessage, error) {
	pollCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
		p.logger.Info("polling for status", zap.Duration("timeout", p.timeout))
	} else {
		p.logger.Info("polling for status forever")
	}

	for attempt := 1; ; attempt++ {
		if err := p.limiter.Wait(pollCtx); err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			p.logger.Info("no status response before timeout, giving up",
				zap.Int("attempts", attempt-1),
				zap.Duration("timeout", p.timeout))
			return nil, nil, fmt.Errorf("%w after %d attempts", ErrUnresponsive, attempt-1)
		}

		conn, status, err := p.attempt()
		if err == nil {
			p.logger.Info("status response received",
				zap.Uint16("mtr_id", status.MTRID),
				zap.Int("attempt", attempt))
			return conn, status, nil
		}
		p.logger.Info("status polling failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
}

func (p *Poller) attempt() (Conn, *mtr.StatusMessage, error) {
	conn, err := p.open()
	if err != nil {
		return nil, nil, fmt.Errorf("open transport: %w", err)
	}

	reader := mtr.NewReader(conn, p.opts...)
	if err := reader.SendStatusCommand(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	msgs, err := reader.Receive()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("receive: %w", err)
	}
	if len(msgs) != 1 {
		conn.Close()
		return nil, nil, fmt.Errorf("expected one status message, got %d messages", len(msgs))
	}
	status, ok := msgs[0].(*mtr.StatusMessage)
	if !ok {
		conn.Close()
		return nil, nil, fmt.Errorf("expected status message, got %s", mtr.FormatMessageType(msgs[0].Type()))
	}
	return conn, status, nil
}
