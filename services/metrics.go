package services

import "github.com/prometheus/client_golang/prometheus"

var (
	papersUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arxiv_papers_upserted_total",
			Help: "Papers written by ingestion, by action (inserted, updated).",
		},
		[]string{"action"},
	)
	ingestRecordErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arxiv_ingest_record_errors_total",
			Help: "Records skipped during ingestion because they could not be stored.",
		},
	)
)

func init() {
	prometheus.MustRegister(papersUpserted, ingestRecordErrors)
}
