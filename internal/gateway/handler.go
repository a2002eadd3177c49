package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/springmesh/apigw/internal/observability"
	"github.com/springmesh/apigw/internal/registry"
	"github.com/springmesh/apigw/internal/util"
)

// maxRequestBody caps buffered request bodies at 10 MiB.
const maxRequestBody = 10 << 20

// Handler adapts the gateway pipeline to net/http.
type Handler struct {
	gateway *Gateway
	logger  observability.Logger
}

// NewHandler creates the HTTP boundary for the gateway.
func NewHandler(g *Gateway, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{gateway: g, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.gateway.Handle(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	// The body is re-buffered, so the upstream framing headers no
	// longer apply.
	w.Header().Del("Content-Length")
	w.Header().Del("Transfer-Encoding")

	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// decode converts an inbound http.Request into a pipeline request. The
// body is buffered for methods that forward one, and always for the
// login path since login forwards as POST whatever the inbound method.
func (h *Handler) decode(r *http.Request) (*Request, error) {
	var body []byte
	buffersBody := methodCarriesBody(r.Method) || r.URL.Path == h.gateway.loginPath
	if buffersBody && r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
		if err != nil {
			return nil, util.NewBadRequestErrorWithCause("request body could not be read", err)
		}
		if len(b) > maxRequestBody {
			return nil, util.ErrBodyTooLarge
		}
		body = b
	}

	return &Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: util.CloneHeader(r.Header),
		Query:  util.SingleValueQuery(r.URL.Query()),
		Body:   body,
	}, nil
}

// writeError translates pipeline errors into HTTP statuses: over-limit
// bodies map to 413, caller input errors and unknown services to 400,
// upstream transport failures to 502, anything else to 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var serviceNotFound *registry.ServiceNotFoundError
	switch {
	case errors.Is(err, util.ErrBodyTooLarge):
		status = http.StatusRequestEntityTooLarge
	case util.IsClientError(err), errors.As(err, &serviceNotFound):
		status = http.StatusBadRequest
	case util.IsServerError(err):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			observability.Error(err))
	} else {
		h.logger.Debug("request rejected",
			observability.Int("status", status),
			observability.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
