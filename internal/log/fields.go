package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOwner         = "owner"
	FieldCommand       = "command"
	FieldOperation     = "operation"
	FieldAmountCents   = "amount_cents"
	FieldCategory      = "category"
	FieldDirection     = "direction"
	FieldWindow        = "window"
	FieldTransactionID = "transaction_id"
	FieldDuration      = "duration_ms"
	FieldStatusCode    = "status_code"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldError         = "error"
	FieldExportRef     = "export_ref"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
	ComponentCache   = "cache"
)
