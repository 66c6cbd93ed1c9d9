// Package metrics defines the Prometheus collectors for attestation import.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var fastBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1}

// Rejection reasons.
const (
	ReasonDecode    = "decode"
	ReasonBitfield  = "bitfield"
	ReasonCommittee = "committee"
	ReasonSignature = "signature"
	ReasonDuplicate = "duplicate"
	ReasonStorage   = "storage"
	ReasonWindow    = "window"
)

var AttestationsImported = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "attest_attestations_imported_total",
	Help: "Total number of attestations that verified and were stored",
})

var AttestationsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "attest_attestations_rejected_total",
	Help: "Total number of attestations rejected, by reason",
}, []string{"reason"})

var SignatureVerificationTime = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "attest_signature_verification_seconds",
	Help:    "Time taken to verify an aggregate signature",
	Buckets: fastBuckets,
})

// Gossip validation results.
const (
	ResultAccept = "accept"
	ResultReject = "reject"
	ResultIgnore = "ignore"
)

var GossipValidationResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "attest_gossip_validation_results_total",
	Help: "Gossip attestation validation outcomes",
}, []string{"result"})

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		AttestationsImported,
		AttestationsRejected,
		SignatureVerificationTime,
		GossipValidationResults,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewServer returns an HTTP server exposing reg on /metrics.
func NewServer(port int, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
