// Package influxdb writes bridge activity to InfluxDB 2.x for dashboards.
//
// A Sink is registered on the pump as an observer and on the operation
// registry as a change notifier. It writes two measurements:
//
//	bridge_task             tags method, result   fields duration_us, queue_wait_us, abandoned
//	bridge_document_change  tags document, method  field count
//
// Points are batched by the influxdb-client-go write API according to
// batch_size and flush_interval.
package influxdb
