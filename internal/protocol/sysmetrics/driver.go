// Package sysmetrics implements the SYSTEM protocol family: sensors whose
// reading is a host metric (CPU load, memory, disk) rather than a value
// read off a field bus. Grounded on hashicorp-nomad's vendored gopsutil
// host-stats probes and wired to the real shirou/gopsutil/v3 module
// rather than reimplementing /proc parsing by hand.
package sysmetrics

import (
	"context"
	"fmt"

	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/driver"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Metric selects which host statistic a SYSTEM sensor samples.
type Metric string

const (
	MetricCPUPercent  Metric = "cpu_percent"
	MetricMemPercent  Metric = "mem_percent"
	MetricDiskPercent Metric = "disk_percent"
)

// Driver never truly "connects" — a host metric is always available — so
// Connect/Disconnect are no-ops and Read samples gopsutil directly. This
// still runs under the ordinary Supervisor poll loop so it reports ONLINE
// the same way every other driver does (§4.2).
type Driver struct {
	driver.BaseWrite
	sensorID int64
	metric   Metric
	path     string // disk_percent mount point, default "/"
}

func New(sensor config.SensorDefinition) (*Driver, error) {
	metric, _ := sensor.ConnectionParams["metric"].(string)
	if metric == "" {
		metric = string(MetricCPUPercent)
	}
	m := Metric(metric)
	switch m {
	case MetricCPUPercent, MetricMemPercent, MetricDiskPercent:
	default:
		return nil, fmt.Errorf("sysmetrics: unknown metric %q", metric)
	}
	path, _ := sensor.ConnectionParams["path"].(string)
	if path == "" {
		path = "/"
	}
	return &Driver{sensorID: sensor.SensorID, metric: m, path: path}, nil
}

func (d *Driver) Connect(ctx context.Context) error { return nil }
func (d *Driver) Disconnect()                       {}

func (d *Driver) Read(ctx context.Context) (float64, error) {
	switch d.metric {
	case MetricCPUPercent:
		percents, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", driver.ErrRead, err)
		}
		if len(percents) == 0 {
			return 0, fmt.Errorf("%w: no cpu samples", driver.ErrRead)
		}
		return percents[0], nil
	case MetricMemPercent:
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", driver.ErrRead, err)
		}
		return vm.UsedPercent, nil
	case MetricDiskPercent:
		u, err := disk.UsageWithContext(ctx, d.path)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", driver.ErrRead, err)
		}
		return u.UsedPercent, nil
	default:
		return 0, fmt.Errorf("%w: unknown metric", driver.ErrRead)
	}
}
