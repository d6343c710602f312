package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ServiceMetrics tracks request counts and success rates for a service.
type ServiceMetrics struct {
	ServiceName           string                 `json:"service_name"`
	TotalRequests         int64                  `json:"total_requests"`
	SuccessfulRequests    int64                  `json:"successful_requests"`
	FailedRequests        int64                  `json:"failed_requests"`
	TotalProcessingTime   time.Duration          `json:"total_processing_time"`
	AverageProcessingTime time.Duration          `json:"average_processing_time"`
	LastUpdated           time.Time              `json:"last_updated"`
	CustomCounters        map[string]int64       `json:"custom_counters"`
	mutex                 sync.RWMutex
}

// NewServiceMetrics creates a metrics tracker for the named service.
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		ServiceName:    serviceName,
		LastUpdated:    time.Now(),
		CustomCounters: make(map[string]int64),
	}
}

// RecordRequest records one operation with its outcome and duration.
func (m *ServiceMetrics) RecordRequest(success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRequests++
	m.TotalProcessingTime += processingTime
	m.AverageProcessingTime = time.Duration(int64(m.TotalProcessingTime) / m.TotalRequests)

	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
	}
	m.LastUpdated = time.Now()
}

// IncrementCounter increments a named counter.
func (m *ServiceMetrics) IncrementCounter(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.CustomCounters[key]++
	m.LastUpdated = time.Now()
}

// GetSuccessRate returns the success rate as a percentage.
func (m *ServiceMetrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalRequests == 0 {
		return 0.0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100.0
}

// Snapshot returns a copy of the counters for reporting.
func (m *ServiceMetrics) Snapshot() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counters := make(map[string]int64, len(m.CustomCounters))
	for k, v := range m.CustomCounters {
		counters[k] = v
	}
	return map[string]interface{}{
		"service_name":        m.ServiceName,
		"total_requests":      m.TotalRequests,
		"successful_requests": m.SuccessfulRequests,
		"failed_requests":     m.FailedRequests,
		"avg_processing_time": m.AverageProcessingTime.String(),
		"custom_counters":     counters,
	}
}

// LogSummary logs the current metrics state.
func (m *ServiceMetrics) LogSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	logrus.WithFields(logrus.Fields{
		"service_name":        m.ServiceName,
		"total_requests":      m.TotalRequests,
		"successful_requests": m.SuccessfulRequests,
		"failed_requests":     m.FailedRequests,
		"avg_processing_time": m.AverageProcessingTime,
	}).Info("Service metrics summary")
}
