package metrics

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const jobName = "storyteller_bot"

// Pusher периодически отправляет метрики в Pushgateway.
// Нужен, когда бот работает в polling-режиме без доступного снаружи /metrics.
type Pusher struct {
	pusher   *push.Pusher
	instance string
	logger   *zap.Logger
}

// NewPusher создает Pusher и сразу пробует отправить метрики, чтобы проверить соединение.
func NewPusher(pushgatewayURL string, gatherer prometheus.Gatherer, logger *zap.Logger) (*Pusher, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
		logger.Warn("could not get hostname", zap.Error(err))
	}
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	p := &Pusher{
		pusher:   push.New(pushgatewayURL, jobName).Gatherer(gatherer).Grouping("instance", instanceID),
		instance: instanceID,
		logger:   logger.Named("MetricsPusher"),
	}
	if err := p.pusher.Push(); err != nil {
		return nil, fmt.Errorf("could not push initial metrics to Pushgateway: %w", err)
	}
	p.logger.Info("Initial push to Pushgateway successful", zap.String("url", pushgatewayURL), zap.String("instance", instanceID))
	return p, nil
}

// Run отправляет метрики с интервалом до отмены контекста, затем удаляет группу инстанса.
func (p *Pusher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.cleanup()
			return nil
		case <-ticker.C:
			if err := p.pusher.Push(); err != nil {
				p.logger.Warn("Error pushing metrics to Pushgateway", zap.Error(err))
			}
		}
	}
}

func (p *Pusher) cleanup() {
	if err := p.pusher.Delete(); err != nil {
		p.logger.Warn("Error deleting metrics from Pushgateway", zap.Error(err))
		return
	}
	p.logger.Info("Deleted metrics from Pushgateway", zap.String("instance", p.instance))
}
