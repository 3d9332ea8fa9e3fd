// Package prometheus exposes authclient metrics as a prometheus.Collector.
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(exporter.NewExporter(client))
package prometheus
