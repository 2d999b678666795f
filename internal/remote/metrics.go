package remote

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"helmsman/internal/sshexec"
)

// MetricsSample is one resource snapshot read off a host. The registry maps
// it into the catalog's live metrics.
type MetricsSample struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	UptimeSeconds uint64
	Load1         float64
	Load5         float64
	Load15        float64
	SampledAt     time.Time
}

// metricsScript reads /proc and df with labelled output lines. CPU usage is
// derived from two /proc/stat samples a second apart, computed on our side
// so the remote script stays trivially portable.
func metricsScript() string {
	s := NewProbeScript()
	s.Echo("loadavg", "cat /proc/loadavg")
	s.Echo("uptime", "cat /proc/uptime")
	s.Echo("mem", `free -b | awk '/^Mem:/ {print $2, $3}'`)
	s.Echo("disk", `df -P / | awk 'NR==2 {gsub("%","",$5); print $5}'`)
	s.Echo("cpu1", "head -n1 /proc/stat")
	s.Raw("sleep 1")
	s.Echo("cpu2", "head -n1 /proc/stat")
	return s.String()
}

// logScript tails recent system logs, preferring journald and falling back
// to syslog files. Always exits zero; hosts without either simply report
// nothing.
func logScript(lines int) string {
	n := strconv.Itoa(lines)
	s := NewProbeScript()
	s.Raw("journalctl -n " + n + " --no-pager 2>/dev/null" +
		" || tail -n " + n + " /var/log/syslog 2>/dev/null" +
		" || tail -n " + n + " /var/log/messages 2>/dev/null")
	return s.String()
}

// Prober runs the low-priority metrics and log probes for the poller.
type Prober struct {
	runner sshexec.Runner
}

func NewProber(runner sshexec.Runner) *Prober {
	return &Prober{runner: runner}
}

func (p *Prober) Metrics(ctx context.Context, target sshexec.Target) (MetricsSample, error) {
	res, err := p.runner.Run(ctx, target, metricsScript())
	if err != nil {
		return MetricsSample{}, err
	}
	if res.ExitCode != 0 {
		return MetricsSample{}, fmt.Errorf("metrics probe exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return parseMetrics(res.Stdout)
}

func (p *Prober) Logs(ctx context.Context, target sshexec.Target, lines int) ([]string, error) {
	if lines <= 0 {
		lines = 50
	}
	res, err := p.runner.Run(ctx, target, logScript(lines))
	if err != nil {
		return nil, err
	}
	out := strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n")
	if len(out) == 1 && out[0] == "" {
		return nil, nil
	}
	return out, nil
}

func parseMetrics(stdout string) (MetricsSample, error) {
	m := MetricsSample{SampledAt: time.Now()}
	var cpu1, cpu2 []uint64

	for _, line := range strings.Split(stdout, "\n") {
		tag, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		switch tag {
		case "loadavg":
			if len(fields) >= 3 {
				m.Load1, _ = strconv.ParseFloat(fields[0], 64)
				m.Load5, _ = strconv.ParseFloat(fields[1], 64)
				m.Load15, _ = strconv.ParseFloat(fields[2], 64)
			}
		case "uptime":
			if len(fields) >= 1 {
				secs, _ := strconv.ParseFloat(fields[0], 64)
				m.UptimeSeconds = uint64(secs)
			}
		case "mem":
			if len(fields) >= 2 {
				total, _ := strconv.ParseUint(fields[0], 10, 64)
				used, _ := strconv.ParseUint(fields[1], 10, 64)
				if total > 0 {
					m.MemoryPercent = 100 * float64(used) / float64(total)
				}
			}
		case "disk":
			if len(fields) >= 1 {
				m.DiskPercent, _ = strconv.ParseFloat(fields[0], 64)
			}
		case "cpu1":
			cpu1 = parseCPUStat(fields)
		case "cpu2":
			cpu2 = parseCPUStat(fields)
		}
	}

	if len(cpu1) >= 4 && len(cpu2) >= 4 {
		m.CPUPercent = cpuDelta(cpu1, cpu2)
	}
	if m.UptimeSeconds == 0 && m.Load1 == 0 && cpu1 == nil {
		return m, fmt.Errorf("metrics probe returned no recognizable output")
	}
	return m, nil
}

// parseCPUStat extracts the jiffie counters from a "cpu  user nice system
// idle ..." line (the leading "cpu" token is already stripped as the tag's
// first field).
func parseCPUStat(fields []string) []uint64 {
	if len(fields) > 0 && fields[0] == "cpu" {
		fields = fields[1:]
	}
	var out []uint64
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

// cpuDelta computes busy time between two samples: everything except the
// idle (index 3) and iowait (index 4) counters.
func cpuDelta(a, b []uint64) float64 {
	sum := func(s []uint64) (total, idle uint64) {
		for i, v := range s {
			total += v
			if i == 3 || (i == 4 && len(s) > 4) {
				idle += v
			}
		}
		return
	}
	t1, i1 := sum(a)
	t2, i2 := sum(b)
	if t2 <= t1 {
		return 0
	}
	dt := float64(t2 - t1)
	di := float64(i2 - i1)
	pct := 100 * (dt - di) / dt
	if pct < 0 {
		return 0
	}
	return pct
}
