package log

import "moneytrack/internal/core"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldID         = "id"
	FieldTitle      = "title"
	FieldAmount     = "amount"
	FieldSynced     = "is_synced"
	FieldPage       = "page"
	FieldLimit      = "limit"
	FieldSource     = "source"
	FieldRemote     = "remote"
)

const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentStore        = "store"
	ComponentStorage      = "storage"
	ComponentRemote       = "remote"
	ComponentConnectivity = "connectivity"
	ComponentAMQP         = "amqp"
	ComponentEvents       = "events"
	ComponentCache        = "cache"
	ComponentSecurity     = "security"
	ComponentRateLimit    = "rate_limit"
	ComponentTrace        = "trace"
	ComponentBackend      = "backend"
)

const (
	OpLoad     = "load"
	OpAdd      = "add"
	OpDelete   = "delete"
	OpPublish  = "publish"
	OpProbe    = "probe"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields builds a flat key/value list for slog calls.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the identifying fields of a record. Receipts are never logged.
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldID] = tx.ID.String()
	f[FieldTitle] = tx.Title
	f[FieldAmount] = tx.Amount
	f[FieldSynced] = tx.IsSynced
	return f
}

func (f LogFields) WithPage(page, limit int) LogFields {
	f[FieldPage] = page
	f[FieldLimit] = limit
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
