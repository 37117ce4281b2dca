package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	httputils "github.com/foomo/keel/utils/net/http"
	"github.com/foomo/receptionsuite/pkg/metrics"
	"github.com/foomo/receptionsuite/pkg/repo"
	"github.com/foomo/receptionsuite/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultBasePath is the path the storage api is exported on
const DefaultBasePath = "/api"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	HTTP struct {
		l           *zap.Logger
		basePath    string
		staticDir   string
		maxBodySize int64
		repo        *repo.Repo
		watchdog    interface{ Reset() }
		mux         *http.ServeMux
	}
	HTTPOption func(*HTTP)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// NewHTTP returns the storage api handler
func NewHTTP(l *zap.Logger, r *repo.Repo, opts ...HTTPOption) http.Handler {
	inst := &HTTP{
		l:           l.Named("http"),
		basePath:    DefaultBasePath,
		maxBodySize: 16 << 20,
		repo:        r,
		mux:         http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(inst)
	}
	inst.basePath = strings.TrimSuffix(inst.basePath, "/")

	inst.mux.HandleFunc("GET "+inst.basePath+"/storage", inst.instrument(RouteListResources, inst.listResources))
	inst.mux.HandleFunc("GET "+inst.basePath+"/storage/{key}", inst.instrument(RouteGetResource, inst.getResource))
	inst.mux.HandleFunc("POST "+inst.basePath+"/storage/{key}", inst.instrument(RoutePutResource, inst.putResource))
	inst.mux.HandleFunc("GET "+inst.basePath+"/history/{key}", inst.instrument(RouteGetHistory, inst.getHistory))
	inst.mux.HandleFunc("GET "+inst.basePath+"/history/{key}/{version}", inst.instrument(RouteGetVersion, inst.getVersion))
	inst.mux.HandleFunc("GET "+inst.basePath+"/heartbeat", inst.instrument(RouteHeartbeat, inst.heartbeat))
	inst.mux.HandleFunc("POST "+inst.basePath+"/heartbeat", inst.instrument(RouteHeartbeat, inst.heartbeat))
	if inst.staticDir != "" {
		inst.mux.Handle("GET /", http.FileServer(http.Dir(inst.staticDir)))
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithBasePath(v string) HTTPOption {
	return func(o *HTTP) {
		o.basePath = v
	}
}

// WithStaticDir serves the dashboard files below v on /
func WithStaticDir(v string) HTTPOption {
	return func(o *HTTP) {
		o.staticDir = v
	}
}

func WithMaxBodySize(v int64) HTTPOption {
	return func(o *HTTP) {
		o.maxBodySize = v
	}
}

// WithIdleWatchdog resets v on every heartbeat and storage request
func WithIdleWatchdog(v interface{ Reset() }) HTTPOption {
	return func(o *HTTP) {
		o.watchdog = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) getResource(w http.ResponseWriter, r *http.Request) int {
	key := r.PathValue("key")
	data, err := h.repo.Get(r.Context(), key)
	if err != nil {
		return h.writeRepoError(w, r, err)
	}
	return h.write(w, data)
}

func (h *HTTP) putResource(w http.ResponseWriter, r *http.Request) int {
	key := r.PathValue("key")
	if r.Body == nil {
		httputils.BadRequestServerError(h.l, w, r, errors.New("empty request body"))
		return http.StatusBadRequest
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.l.Warn("request body too large", zap.String("key", key), zap.Int64("limit", maxBytesErr.Limit))
		return h.writeError(w, http.StatusRequestEntityTooLarge, responses.CodeBodyTooLarge, err)
	} else if err != nil {
		httputils.BadRequestServerError(h.l, w, r, errors.Wrap(err, "failed to read incoming request"))
		return http.StatusBadRequest
	}

	timestamp, err := h.repo.Put(r.Context(), key, data)
	if err != nil {
		return h.writeRepoError(w, r, err)
	}
	return h.writeJSON(w, &responses.Put{
		Success:   true,
		Timestamp: timestamp,
	})
}

func (h *HTTP) listResources(w http.ResponseWriter, r *http.Request) int {
	keys, err := h.repo.Keys(r.Context())
	if err != nil {
		return h.writeRepoError(w, r, err)
	}
	return h.writeJSON(w, keys)
}

func (h *HTTP) getHistory(w http.ResponseWriter, r *http.Request) int {
	versions, err := h.repo.Versions(r.Context(), r.PathValue("key"))
	if err != nil {
		return h.writeRepoError(w, r, err)
	}
	return h.writeJSON(w, versions)
}

func (h *HTTP) getVersion(w http.ResponseWriter, r *http.Request) int {
	data, err := h.repo.Version(r.Context(), r.PathValue("key"), r.PathValue("version"))
	if err != nil {
		return h.writeRepoError(w, r, err)
	}
	return h.write(w, data)
}

func (h *HTTP) heartbeat(w http.ResponseWriter, r *http.Request) int {
	return h.writeJSON(w, &responses.Heartbeat{
		Alive:     true,
		Timestamp: time.Now(),
	})
}

// instrument wraps a route with metrics and the idle watchdog
func (h *HTTP) instrument(route Route, fn func(w http.ResponseWriter, r *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if h.watchdog != nil {
			h.watchdog.Reset()
		}

		status := strconv.Itoa(fn(w, r))

		metrics.ServiceRequestCounter.WithLabelValues(string(route), status).Inc()
		metrics.ServiceRequestDuration.WithLabelValues(string(route), status).Observe(time.Since(start).Seconds())
	}
}

func (h *HTTP) writeRepoError(w http.ResponseWriter, r *http.Request, err error) int {
	switch {
	case errors.Is(err, repo.ErrInvalidKey):
		return h.writeError(w, http.StatusBadRequest, responses.CodeInvalidKey, err)
	case errors.Is(err, repo.ErrInvalidJSON):
		return h.writeError(w, http.StatusBadRequest, responses.CodeInvalidJSON, err)
	case errors.Is(err, repo.ErrNoVersion):
		return h.writeError(w, http.StatusNotFound, responses.CodeNoVersion, err)
	default:
		h.l.Error("storage request failed", zap.String("path", r.URL.Path), zap.Error(err))
		return h.writeError(w, http.StatusInternalServerError, responses.CodeStorage, err)
	}
}

func (h *HTTP) writeError(w http.ResponseWriter, status, code int, err error) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(responses.NewError(status, code, err.Error())); encErr != nil {
		h.l.Error("could not encode error", zap.Error(encErr))
	}
	return status
}

func (h *HTTP) writeJSON(w http.ResponseWriter, reply interface{}) int {
	data, err := json.Marshal(reply)
	if err != nil {
		h.l.Error("could not encode reply", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	return h.write(w, data)
}

func (h *HTTP) write(w http.ResponseWriter, data []byte) int {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		h.l.Debug("could not write reply", zap.Error(err))
	}
	return http.StatusOK
}
