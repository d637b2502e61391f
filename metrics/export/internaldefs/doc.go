// Package internaldefs holds the metric names, help strings and bucket
// boundaries shared by the Prometheus and OTel exporters.
//
// Both exporters read the same definitions, so a rename here changes every
// exported series at once. The package performs no I/O.
package internaldefs
