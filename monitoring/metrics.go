// Package monitoring 收集预测服务的运行指标
package monitoring

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// DefaultBuckets 延迟直方图默认分桶（秒）
var DefaultBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metric 指标快照
type Metric struct {
	Name   string            `json:"name"`
	Type   MetricType        `json:"type"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
	// 仅直方图使用
	Count uint64 `json:"count,omitempty"`
}

type series struct {
	name   string
	labels map[string]string
	value  float64

	counts []uint64
	count  uint64
}

type family struct {
	kind    MetricType
	help    string
	buckets []float64
}

// MetricsCollector 指标收集器，并发安全
type MetricsCollector struct {
	mu       sync.Mutex
	families map[string]*family
	series   map[string]*series

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		families:  make(map[string]*family),
		series:    make(map[string]*series),
		startTime: time.Now(),
	}
}

// Describe 注册指标类型和说明，未注册的指标在首次使用时按调用方式推断类型
func (mc *MetricsCollector) Describe(name string, kind MetricType, help string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	f := mc.familyLocked(name, kind)
	f.help = help
}

// IncrCounter 计数器加一
func (mc *MetricsCollector) IncrCounter(name string, labels map[string]string) {
	mc.AddCounter(name, 1, labels)
}

// AddCounter 增加计数器，负数被忽略
func (mc *MetricsCollector) AddCounter(name string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.familyLocked(name, MetricTypeCounter)
	mc.seriesLocked(name, labels).value += value
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.familyLocked(name, MetricTypeGauge)
	mc.seriesLocked(name, labels).value = value
}

// Observe 记录直方图观测值
func (mc *MetricsCollector) Observe(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	f := mc.familyLocked(name, MetricTypeHistogram)
	s := mc.seriesLocked(name, labels)
	if s.counts == nil {
		s.counts = make([]uint64, len(f.buckets))
	}
	for i, bound := range f.buckets {
		if value <= bound {
			s.counts[i]++
			break
		}
	}
	s.value += value
	s.count++
}

// Snapshot 按名称和标签排序返回当前全部指标
func (mc *MetricsCollector) Snapshot() []Metric {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	keys := make([]string, 0, len(mc.series))
	for key := range mc.series {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	metrics := make([]Metric, 0, len(keys))
	for _, key := range keys {
		s := mc.series[key]
		labels := make(map[string]string, len(s.labels))
		for k, v := range s.labels {
			labels[k] = v
		}
		metrics = append(metrics, Metric{
			Name:   s.name,
			Type:   mc.families[s.name].kind,
			Labels: labels,
			Value:  s.value,
			Count:  s.count,
		})
	}
	return metrics
}

// Value 返回单个序列的值，不存在时为0
func (mc *MetricsCollector) Value(name string, labels map[string]string) float64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if s, ok := mc.series[seriesKey(name, labels)]; ok {
		return s.value
	}
	return 0
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus(w io.Writer) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	byName := make(map[string][]*series)
	for _, s := range mc.series {
		byName[s.name] = append(byName[s.name], s)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		f := mc.families[name]
		help := f.help
		if help == "" {
			help = fmt.Sprintf("Metric %s", name)
		}
		fmt.Fprintf(&sb, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&sb, "# TYPE %s %s\n", name, f.kind)

		list := byName[name]
		sort.Slice(list, func(i, j int) bool {
			return formatLabels(list[i].labels, "", "") < formatLabels(list[j].labels, "", "")
		})
		for _, s := range list {
			if f.kind != MetricTypeHistogram {
				fmt.Fprintf(&sb, "%s%s %s\n", name, formatLabels(s.labels, "", ""), formatValue(s.value))
				continue
			}
			var cumulative uint64
			for i, bound := range f.buckets {
				cumulative += s.counts[i]
				fmt.Fprintf(&sb, "%s_bucket%s %d\n", name, formatLabels(s.labels, "le", formatValue(bound)), cumulative)
			}
			fmt.Fprintf(&sb, "%s_bucket%s %d\n", name, formatLabels(s.labels, "le", "+Inf"), s.count)
			fmt.Fprintf(&sb, "%s_sum%s %s\n", name, formatLabels(s.labels, "", ""), formatValue(s.value))
			fmt.Fprintf(&sb, "%s_count%s %d\n", name, formatLabels(s.labels, "", ""), s.count)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc":       m.Alloc,
			"sys":         m.Sys,
			"heap_alloc":  m.HeapAlloc,
			"heap_inuse":  m.HeapInuse,
			"gc_count":    m.NumGC,
			"gc_pause_ns": m.PauseTotalNs,
		},
		"num_cpu": runtime.NumCPU(),
	}
}

func (mc *MetricsCollector) familyLocked(name string, kind MetricType) *family {
	f, ok := mc.families[name]
	if !ok {
		f = &family{kind: kind}
		if kind == MetricTypeHistogram {
			f.buckets = DefaultBuckets
		}
		mc.families[name] = f
	}
	return f
}

func (mc *MetricsCollector) seriesLocked(name string, labels map[string]string) *series {
	key := seriesKey(name, labels)
	s, ok := mc.series[key]
	if !ok {
		copied := make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
		s = &series{name: name, labels: copied}
		mc.series[key] = s
	}
	return s
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels, "", "")
}

// formatLabels 按键排序输出 {k="v",...}，extraKey 非空时追加在末尾
func formatLabels(labels map[string]string, extraKey, extraValue string) string {
	if len(labels) == 0 && extraKey == "" {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strconv.Quote(labels[k])))
	}
	if extraKey != "" {
		parts = append(parts, fmt.Sprintf("%s=%s", extraKey, strconv.Quote(extraValue)))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatValue(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
