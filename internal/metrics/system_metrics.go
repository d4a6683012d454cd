package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemCollector samples host and runtime gauges on an interval.
// The default Prometheus registry already exports go_* and process_*
// series, so these carry the panel_ prefix.
type SystemCollector struct {
	systemCPUUsage    *prometheus.GaugeVec
	systemMemoryUsage *prometheus.GaugeVec
	heapAlloc         *prometheus.GaugeVec
	goroutines        *prometheus.GaugeVec

	service string
	mu      sync.Mutex
}

var (
	systemCollector     *SystemCollector
	systemCollectorOnce sync.Once
)

// NewSystemCollector returns the process-wide collector, registering its
// gauges with reg on first use.
func NewSystemCollector(reg prometheus.Registerer, service string) *SystemCollector {
	systemCollectorOnce.Do(func() {
		sc := &SystemCollector{
			service: service,
			systemCPUUsage: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "panel_system_cpu_usage_percent",
					Help: "Current CPU usage percentage",
				},
				[]string{"service", "core"},
			),
			systemMemoryUsage: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "panel_system_memory_usage_bytes",
					Help: "Current memory usage in bytes",
				},
				[]string{"service", "type"},
			),
			heapAlloc: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "panel_heap_alloc_bytes",
					Help: "Heap memory in use in bytes",
				},
				[]string{"service"},
			),
			goroutines: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "panel_goroutines",
					Help: "Number of goroutines that currently exist",
				},
				[]string{"service"},
			),
		}
		reg.MustRegister(sc.systemCPUUsage, sc.systemMemoryUsage, sc.heapAlloc, sc.goroutines)
		systemCollector = sc
	})
	return systemCollector
}

// Start collects every interval until ctx is done
func (sc *SystemCollector) Start(ctx context.Context, interval time.Duration) {
	log.Info().
		Str("service", sc.service).
		Dur("interval", interval).
		Msg("Starting system metrics collection")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sc.Collect()
			}
		}
	}()
}

// Collect takes one sample
func (sc *SystemCollector) Collect() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			sc.systemCPUUsage.WithLabelValues(sc.service, fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	} else {
		log.Debug().Err(err).Msg("Failed to sample CPU usage")
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		sc.systemMemoryUsage.WithLabelValues(sc.service, "total").Set(float64(vmstat.Total))
		sc.systemMemoryUsage.WithLabelValues(sc.service, "available").Set(float64(vmstat.Available))
		sc.systemMemoryUsage.WithLabelValues(sc.service, "used").Set(float64(vmstat.Used))
	} else {
		log.Debug().Err(err).Msg("Failed to sample memory usage")
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	sc.heapAlloc.WithLabelValues(sc.service).Set(float64(m.HeapAlloc))
	sc.goroutines.WithLabelValues(sc.service).Set(float64(runtime.NumGoroutine()))
}
