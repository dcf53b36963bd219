package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "focuslog/internal/platform/errors"
)

var ErrPulseClosed = errors.New("pulse container is closed")

// Engine is what the pulse worker drives once per tick.
type Engine interface {
	Tick(ctx context.Context) error
	Conclude(ctx context.Context) error
}

// TickerFunc starts a ticker and returns its channel and a stop function.
type TickerFunc func(interval time.Duration) (<-chan time.Time, func())

func IntervalTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

type pulseOp int

const (
	opInstall pulseOp = iota
	opSwap
	opStart
	opStop
	opClose
)

type pulseCommand struct {
	ctx    context.Context
	op     pulseOp
	engine Engine
	reply  chan error
}

// PulseContainer hosts the current engine on one long-lived worker goroutine.
// The worker owns the engine reference; callers hand it commands and wait for
// the reply, so engines are swapped in place between two ticks.
type PulseContainer struct {
	interval  time.Duration
	newTicker TickerFunc
	logger    *slog.Logger

	cmds      chan pulseCommand
	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
	ticks     atomic.Int64
}

func NewPulseContainer(interval time.Duration, ticker TickerFunc, logger *slog.Logger) *PulseContainer {
	if interval <= 0 {
		interval = time.Second
	}
	if ticker == nil {
		ticker = IntervalTicker
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &PulseContainer{
		interval:  interval,
		newTicker: ticker,
		logger:    logger,
		cmds:      make(chan pulseCommand),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go p.loop(ctx)
	return p
}

// Ticks reports how many ticks reached an engine.
func (p *PulseContainer) Ticks() int64 {
	return p.ticks.Load()
}

func (p *PulseContainer) InstallFirst(ctx context.Context, engine Engine) error {
	return p.send(ctx, opInstall, engine)
}

// Swap concludes the current engine and replaces it with engine.
func (p *PulseContainer) Swap(ctx context.Context, engine Engine) error {
	return p.send(ctx, opSwap, engine)
}

func (p *PulseContainer) Start(ctx context.Context) error {
	return p.send(ctx, opStart, nil)
}

// Stop halts ticking and concludes the current engine.
func (p *PulseContainer) Stop(ctx context.Context) error {
	return p.send(ctx, opStop, nil)
}

// Close stops the worker for good.
func (p *PulseContainer) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		err = p.send(ctx, opClose, nil)
		p.cancel()
	})
	return err
}

func (p *PulseContainer) send(ctx context.Context, op pulseOp, engine Engine) error {
	cmd := pulseCommand{ctx: ctx, op: op, engine: engine, reply: make(chan error, 1)}
	select {
	case p.cmds <- cmd:
	case <-p.done:
		return ErrPulseClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PulseContainer) loop(ctx context.Context) {
	defer close(p.done)
	var (
		engine     Engine
		tickC      <-chan time.Time
		stopTicker func()
	)
	halt := func() {
		if stopTicker != nil {
			stopTicker()
		}
		tickC, stopTicker = nil, nil
	}
	defer halt()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickC:
			if engine == nil {
				continue
			}
			p.ticks.Add(1)
			if err := engine.Tick(ctx); err != nil {
				p.logger.Error("pulse tick failed", "error", err)
			}
		case cmd := <-p.cmds:
			var err error
			switch cmd.op {
			case opInstall:
				if engine != nil {
					err = fmt.Errorf("%w: install over a live engine", apperrors.ErrImpossibleState)
					break
				}
				engine = cmd.engine
			case opSwap:
				if engine != nil {
					err = engine.Conclude(cmd.ctx)
				}
				engine = cmd.engine
			case opStart:
				if engine == nil {
					err = fmt.Errorf("%w: start without an engine", apperrors.ErrImpossibleState)
					break
				}
				if tickC == nil {
					tickC, stopTicker = p.newTicker(p.interval)
				}
			case opStop, opClose:
				halt()
				if engine != nil {
					err = engine.Conclude(cmd.ctx)
					engine = nil
				}
			}
			cmd.reply <- err
			if cmd.op == opClose {
				return
			}
		}
	}
}
