// Package logging builds structured logrus.Fields using a small,
// consistent vocabulary (component, operation, resource, duration, ...)
// so every stage in the pipeline logs with the same keys.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is a chainable builder over the standard field vocabulary.
type Fields map[string]interface{}

// NewFields starts an empty field set.
func NewFields() Fields {
	return Fields{}
}

// Component records which pipeline component emitted the log line.
func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

// Operation records the operation being performed.
func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

// Resource records what the operation acted on. name is omitted entirely
// when empty, rather than logged as an empty string.
func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

// Duration records an elapsed time in milliseconds.
func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

// Error records err's message. A nil error sets nothing, so call sites can
// unconditionally chain .Error(err) without an extra nil check.
func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

// UserID records the acting user, if known.
func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

// RequestID records the request correlation id.
func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

// TraceID records a distributed trace id.
func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

// StatusCode records an HTTP-like status code.
func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

// Method records an HTTP method.
func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

// URL records a request URL.
func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

// Count records a generic item count.
func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

// Size records a byte size.
func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

// Version records a version string.
func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

// Custom records an arbitrary key/value pair not covered by a named helper.
func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus converts Fields to logrus.Fields for use with a logrus entry.
func (f Fields) ToLogrus() logrus.Fields {
	return logrus.Fields(f)
}

// DatabaseFields builds the standard field set for a storage operation.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields builds the standard field set for an HTTP request/response.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// WorkflowFields builds the standard field set for a workflow operation.
func WorkflowFields(operation, workflowID string) Fields {
	return NewFields().Component("workflow").Operation(operation).Resource("workflow", workflowID)
}

// KubernetesFields builds the standard field set for a Kubernetes API call.
// namespace is omitted when empty (cluster-scoped resources).
func KubernetesFields(operation, resourceType, name, namespace string) Fields {
	f := NewFields().Component("kubernetes").Operation(operation).Resource(resourceType, name)
	if namespace != "" {
		f["namespace"] = namespace
	}
	return f
}

// AIFields builds the standard field set for an LLM/embedding call.
func AIFields(operation, model string) Fields {
	return NewFields().Component("ai").Operation(operation).Custom("model", model)
}

// MetricsFields builds the standard field set for a metrics recording.
func MetricsFields(operation, metricName string, value float64) Fields {
	return NewFields().Component("metrics").Operation(operation).
		Custom("metric_name", metricName).Custom("value", value)
}

// SecurityFields builds the standard field set for an auth/authz event.
func SecurityFields(operation, subject string) Fields {
	return NewFields().Component("security").Operation(operation).Custom("subject", subject)
}

// PerformanceFields builds the standard field set for a timed operation.
func PerformanceFields(operation string, d time.Duration, success bool) Fields {
	return NewFields().Component("performance").Operation(operation).
		Duration(d).Custom("success", success)
}
