package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/saugatapaul1010/Vision-OPs/internal/logger"
)

// Monitor отдаёт метрики процесса обучения на /metrics и обновляет
// потребление ресурсов по тикеру.
type Monitor struct {
	proc      *process.Process
	registry  *prometheus.Registry
	srv       *http.Server
	memUsage  prometheus.Gauge
	cpuUsage  prometheus.Gauge
	epoch     prometheus.Gauge
	epochLoss prometheus.Gauge
	bestScore prometheus.Gauge
}

// New создаёт монитор текущего процесса.
func New() (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attach process monitor: %w", err)
	}

	m := &Monitor{
		proc:     proc,
		registry: prometheus.NewRegistry(),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_megabytes",
			Help: "Memory usage in megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "training_epoch",
			Help: "Current training epoch",
		}),
		epochLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "training_epoch_loss",
			Help: "Mean training loss of the last epoch",
		}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "training_best_score",
			Help: "Best evaluation score so far",
		}),
	}
	m.registry.MustRegister(m.memUsage, m.cpuUsage, m.epoch, m.epochLoss, m.bestScore)
	return m, nil
}

// SetEpoch обновляет номер текущей эпохи.
func (m *Monitor) SetEpoch(epoch int) { m.epoch.Set(float64(epoch)) }

// SetEpochLoss обновляет средний лосс последней эпохи.
func (m *Monitor) SetEpochLoss(loss float64) { m.epochLoss.Set(loss) }

// SetBestScore обновляет лучшее значение метрики.
func (m *Monitor) SetBestScore(score float64) { m.bestScore.Set(score) }

// Run поднимает HTTP-сервер метрик и обновляет ресурсы процесса,
// пока не отменён контекст.
func (m *Monitor) Run(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	m.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Error("metrics server failed", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.srv.Shutdown(shutdownCtx); err != nil {
				logger.L().Warn("metrics server shutdown failed", zap.Error(err))
			}
			return
		case <-ticker.C:
			m.collectProcessInfo()
		}
	}
}

func (m *Monitor) collectProcessInfo() {
	if memInfo, err := m.proc.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := m.proc.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}
