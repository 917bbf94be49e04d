package engine

import (
	"context"
	"log/slog"
	"time"
)

// Plugin — расширение канала. Attach вызывается один раз для каждого канала.
type Plugin interface {
	Name() string
	Attach(ch *Channel)
}

type funcPlugin struct {
	name   string
	attach func(ch *Channel)
}

func (p funcPlugin) Name() string       { return p.name }
func (p funcPlugin) Attach(ch *Channel) { p.attach(ch) }

// NewPlugin создаёт плагин из функции.
func NewPlugin(name string, attach func(ch *Channel)) Plugin {
	return funcPlugin{name: name, attach: attach}
}

// NewListenerPlugin создаёт плагин, добавляющий слушателя.
func NewListenerPlugin(name string, l Listener) Plugin {
	return NewPlugin(name, func(ch *Channel) { ch.Listen(l) })
}

// NewLoggingPlugin логирует каждую отправку.
func NewLoggingPlugin(logger *slog.Logger) Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return NewListenerPlugin("logging", func(ctx context.Context, ev DispatchEvent) error {
		switch ev.Phase {
		case PhaseAfter:
			logger.DebugContext(ctx, "message dispatched",
				"channel", ev.Channel.Name(),
				"message", ev.Message.Name(),
				"message_id", ev.Message.Header().UUID,
				"duration", ev.Duration,
			)
		case PhaseFailed:
			logger.WarnContext(ctx, "message dispatch failed",
				"channel", ev.Channel.Name(),
				"message", ev.Message.Name(),
				"message_id", ev.Message.Header().UUID,
				"error", ev.Err,
			)
		}
		return nil
	})
}

// DispatchObserver получает результаты отправок.
type DispatchObserver interface {
	ObserveDispatch(channel, outcome string, d time.Duration)
}

// NewMetricsPlugin передаёт результаты отправок в observer.
func NewMetricsPlugin(observer DispatchObserver) Plugin {
	return NewListenerPlugin("metrics", func(_ context.Context, ev DispatchEvent) error {
		switch ev.Phase {
		case PhaseAfter:
			observer.ObserveDispatch(ev.Channel.Name(), "ok", ev.Duration)
		case PhaseFailed:
			observer.ObserveDispatch(ev.Channel.Name(), "error", ev.Duration)
		}
		return nil
	})
}
