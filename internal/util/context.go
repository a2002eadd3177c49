package util

import "context"

type contextKey string

const serviceRecorderKey contextKey = "service_recorder"

// ServiceRecorder carries the resolved logical service identifier out of the
// request pipeline. Middleware installs it before the handler runs and reads
// it afterwards, so the raw request path never becomes a metrics label.
// A request is handled by a single goroutine, so no locking is required.
type ServiceRecorder struct {
	service string
}

// Record stores the resolved service identifier.
func (r *ServiceRecorder) Record(service string) {
	r.service = service
}

// Service returns the recorded service identifier, or "" if none resolved.
func (r *ServiceRecorder) Service() string {
	return r.service
}

// ContextWithServiceRecorder installs a ServiceRecorder into the context.
func ContextWithServiceRecorder(ctx context.Context) (context.Context, *ServiceRecorder) {
	rec := &ServiceRecorder{}
	return context.WithValue(ctx, serviceRecorderKey, rec), rec
}

// ServiceRecorderFromContext extracts the ServiceRecorder from context, if any.
func ServiceRecorderFromContext(ctx context.Context) *ServiceRecorder {
	if rec, ok := ctx.Value(serviceRecorderKey).(*ServiceRecorder); ok {
		return rec
	}
	return nil
}

// RecordService records the resolved service on the request's recorder,
// if one is installed.
func RecordService(ctx context.Context, service string) {
	if rec := ServiceRecorderFromContext(ctx); rec != nil {
		rec.Record(service)
	}
}
