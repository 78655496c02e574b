// Package internaldefs holds the metric names and bucket bounds shared by the
// Prometheus and OTel exporters, so both publish identical series.
//
// It must not perform I/O or import an exporter package.
package internaldefs
