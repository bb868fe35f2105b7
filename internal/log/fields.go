package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldInstallment = "installment_id"
	FieldRecord      = "record_id"
	FieldItemType    = "item_type"
	FieldDueDate     = "due_date"
	FieldAmountCents = "amount_cents"
)

// Component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentRenewal = "renewal"
	ComponentWorker  = "worker"
	ComponentCache   = "cache"
)

// Operation names
const (
	OpCreate = "create"
	OpPay    = "pay"
	OpPlan   = "plan"
	OpRenew  = "renew"
	OpSweep  = "sweep"
	OpList   = "list"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithInstallment adds the identifying fields of an installment.
func (f LogFields) WithInstallment(id int64, recordID, itemType, dueDate string) LogFields {
	f[FieldInstallment] = id
	f[FieldRecord] = recordID
	f[FieldItemType] = itemType
	f[FieldDueDate] = dueDate
	return f
}

// WithHTTPResponse adds HTTP request/response fields
func (f LogFields) WithHTTPResponse(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
