package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnalysisMetrics exposes counters/histograms for the analysis pipeline.
type AnalysisMetrics struct {
	analysesTotal     *prometheus.CounterVec
	roomRiskTotal     *prometheus.CounterVec
	skippedLinesTotal *prometheus.CounterVec
	unmatchedTotal    prometheus.Counter
	pipelineDuration  *prometheus.HistogramVec
}

func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	m := &AnalysisMetrics{
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safehug",
			Subsystem: "analysis",
			Name:      "analyses_total",
			Help:      "Total analyses by outcome",
		}, []string{"status"}),
		roomRiskTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safehug",
			Subsystem: "analysis",
			Name:      "room_risk_total",
			Help:      "Completed analyses by room risk level",
		}, []string{"level"}),
		skippedLinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safehug",
			Subsystem: "analysis",
			Name:      "parse_skipped_lines_total",
			Help:      "Transcript lines the parser could not read",
		}, []string{"format"}),
		unmatchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safehug",
			Subsystem: "analysis",
			Name:      "classification_unmatched_total",
			Help:      "Classified message ids with no parsed message",
		}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "safehug",
			Subsystem: "analysis",
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of a full analysis run",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.analysesTotal, m.roomRiskTotal, m.skippedLinesTotal, m.unmatchedTotal, m.pipelineDuration)
	return m
}

// ObserveAnalysis records one finished run. status is "success" or a
// failure class such as "empty_transcript".
func (m *AnalysisMetrics) ObserveAnalysis(status string, seconds float64) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(status).Inc()
	m.pipelineDuration.WithLabelValues(status).Observe(seconds)
}

func (m *AnalysisMetrics) ObserveRoomRisk(level string) {
	if m == nil {
		return
	}
	m.roomRiskTotal.WithLabelValues(level).Inc()
}

func (m *AnalysisMetrics) ObserveSkippedLines(format string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedLinesTotal.WithLabelValues(format).Add(float64(n))
}

func (m *AnalysisMetrics) ObserveUnmatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unmatchedTotal.Add(float64(n))
}

// ChatbotMetrics counts chatbot replies by detected crisis.
type ChatbotMetrics struct {
	repliesTotal *prometheus.CounterVec
}

func NewChatbotMetrics(reg prometheus.Registerer) *ChatbotMetrics {
	m := &ChatbotMetrics{
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safehug",
			Subsystem: "chatbot",
			Name:      "replies_total",
			Help:      "Chatbot replies by crisis type and outcome",
		}, []string{"crisis", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.repliesTotal)
	return m
}

func (m *ChatbotMetrics) ObserveReply(crisis, status string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(crisis, status).Inc()
}
