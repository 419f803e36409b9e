package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRunID          = "run_id"
	FieldDuration       = "duration_ms"
	FieldDurationHuman  = "duration_human"
	FieldSuccess        = "success"
	FieldError          = "error"
	FieldErrorKind      = "error_kind"
	FieldOperation      = "operation"
	FieldToday          = "today"
	FieldObligationID   = "obligation_id"
	FieldEntryID        = "entry_id"
	FieldOccurrenceDate = "occurrence_date"
	FieldOccurrence     = "occurrence_number"
	FieldNextDueDate    = "next_due_date"
	FieldExecutionCount = "execution_count"
	FieldFrequency      = "frequency"
	FieldStatus         = "status"
	FieldAmount         = "amount"
	FieldCurrency       = "currency"
	FieldSheetsRef      = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentCLI       = "cli"
	ComponentRecurring = "recurring"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentExport    = "export"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpAppend   = "append"
	OpSync     = "sync"
	OpValidate = "validate"
	OpCatchUp  = "catch_up"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
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

// WithObligation adds schedule fields of an obligation
func (f LogFields) WithObligation(id, frequency, nextDue string, count int) LogFields {
	f[FieldObligationID] = id
	f[FieldFrequency] = frequency
	f[FieldNextDueDate] = nextDue
	f[FieldExecutionCount] = count
	return f
}

// WithEntry adds ledger entry fields
func (f LogFields) WithEntry(id, date string, occurrence int) LogFields {
	f[FieldEntryID] = id
	f[FieldOccurrenceDate] = date
	f[FieldOccurrence] = occurrence
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
