// Package changefeed publishes committed sqlgw row changes to a message sink.
//
// A Publisher is attached to a database.DB with SetChangeListener. After
// every commit it publishes one JSON message per modified table:
//
//	{
//	  "batch_id": "6f1c...",
//	  "table": "devices",
//	  "changes": [{"op":"insert","rowid":42}, {"op":"delete","rowid":7}],
//	  "timestamp": "2026-01-02T15:04:05.123Z"
//	}
//
// Rolled-back work is never published. Delivery is best effort: a failed
// publish is logged and the batch is dropped.
package changefeed
