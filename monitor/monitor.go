// Package monitor samples the CPU and memory use of the database server while
// a benchmark runs.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/util"
	zlog "github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const mib = 1 << 20

// Summary of a sampling period
type Usage struct {
	AvgCPU   float64 // percent, over the non-zero samples
	MaxCPU   float64 // percent
	AvgMemMB float64 // resident memory in MiB (system-wide used memory without a target)
	Samples  int
}

type sampler interface {
	sample(ctx context.Context) (cpuPercent float64, rss uint64, err error)
	String() string
}

type processSampler struct {
	proc *process.Process
	name string
}

func (s *processSampler) sample(ctx context.Context) (float64, uint64, error) {
	c, err := s.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return 0, 0, err
	}
	m, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return c, m.RSS, nil
}

func (s *processSampler) String() string {
	return fmt.Sprintf("%s (pid %d)", s.name, s.proc.Pid)
}

type systemSampler struct{}

func (systemSampler) sample(ctx context.Context) (float64, uint64, error) {
	c, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, err
	}
	if len(c) == 0 {
		return 0, 0, errors.New("no cpu sample")
	}
	m, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return c[0], m.Used, nil
}

func (systemSampler) String() string {
	return "system"
}

type Monitor struct {
	interval time.Duration
	sampler  sampler

	mu  sync.Mutex
	cpu []float64
	rss []uint64

	cancel context.CancelFunc
	doneWg sync.WaitGroup
}

// Watches the process whose name contains target, the one with the largest
// resident set when several match. Without a match (or with an empty target)
// it samples system-wide CPU instead.
func New(ctx context.Context, target string, interval time.Duration) *Monitor {
	m := &Monitor{interval: interval, sampler: systemSampler{}}

	if target != "" {
		if s, err := findProcess(ctx, target); err != nil {
			zlog.Warn().Err(err).Str("target", target).Msg("Falling back to system-wide CPU")
		} else {
			m.sampler = s
		}
	}
	return m
}

func findProcess(ctx context.Context, target string) (*processSampler, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list processes")
	}

	target = strings.ToLower(target)
	var best *processSampler
	var bestRSS uint64
	for _, p := range procs {
		// processes may exit or be unreadable; skip them
		name, err := p.NameWithContext(ctx)
		if err != nil || !strings.Contains(strings.ToLower(name), target) {
			continue
		}
		info, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			continue
		}
		if best == nil || info.RSS > bestRSS {
			best, bestRSS = &processSampler{proc: p, name: name}, info.RSS
		}
	}

	if best == nil {
		return nil, errors.Newf("no process matching %q", target)
	}
	return best, nil
}

// What is being sampled
func (m *Monitor) Target() string {
	return m.sampler.String()
}

// Starts sampling in the background. The first CPU reading of a process is
// relative to its start, so it primes the counter and is discarded.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.sampler.sample(ctx)

	m.doneWg.Add(1)
	go func() {
		defer m.doneWg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c, rss, err := m.sampler.sample(ctx)
				if err != nil {
					if ctx.Err() == nil {
						zlog.Debug().Err(err).Str("target", m.Target()).Msg("Sample failed")
					}
					continue
				}
				m.mu.Lock()
				m.cpu = append(m.cpu, c)
				m.rss = append(m.rss, rss)
				m.mu.Unlock()
			}
		}
	}()
}

// Stops sampling and summarizes what was collected
func (m *Monitor) Stop() Usage {
	if m.cancel != nil {
		m.cancel()
	}
	m.doneWg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	return summarize(m.cpu, m.rss)
}

// Idle samples read as 0% and are left out of the CPU average.
func summarize(cpuSamples []float64, rssSamples []uint64) Usage {
	busy := []float64{}
	for _, c := range cpuSamples {
		if c > 0 {
			busy = append(busy, c)
		}
	}
	memMB := make([]float64, len(rssSamples))
	for i, r := range rssSamples {
		memMB[i] = float64(r) / mib
	}

	return Usage{
		AvgCPU:   util.Mean(busy),
		MaxCPU:   util.Max(cpuSamples),
		AvgMemMB: util.Mean(memMB),
		Samples:  len(cpuSamples),
	}
}
