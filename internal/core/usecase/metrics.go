package usecase

import (
	"time"

	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

type noopPipelineMetrics struct{}

func (noopPipelineMetrics) RetrievalDegraded(string) {}
func (noopPipelineMetrics) RerankFallback(string) {}
func (noopPipelineMetrics) VerificationFallback() {}
func (noopPipelineMetrics) GateTripped() {}
func (noopPipelineMetrics) QueryCompleted(string, int, int, time.Duration) {}

type noopIngestMetrics struct{}

func (noopIngestMetrics) StartDocument() {}
func (noopIngestMetrics) FinishDocument(time.Duration, int, error) {}

func pipelineMetricsOrNoop(m ports.PipelineMetrics) ports.PipelineMetrics {
	if m == nil {
		return noopPipelineMetrics{}
	}
	return m
}

func ingestMetricsOrNoop(m ports.IngestMetrics) ports.IngestMetrics {
	if m == nil {
		return noopIngestMetrics{}
	}
	return m
}
