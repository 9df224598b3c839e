package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reconstructd/internal/backend"
	"reconstructd/internal/jobs"
	"reconstructd/internal/upload"
	"reconstructd/pkg/types"
)

// JobService is what the HTTP layer needs from the execution scheduler.
type JobService interface {
	Submit(inputPath, backendID string) string
	Cancel(id string) bool
	Status(id string) (types.JobView, error)
	Result(id string) (string, error)
	QueueLen() int
	Running() int
	MaxConcurrent() int
	Totals() (uint64, map[string]uint64)
}

// BackendService is what the HTTP layer needs from the model manager.
type BackendService interface {
	Backends() []types.Backend
	Current() string
	Device() backend.Device
	Degraded() map[string]string
	LoadsTotal() uint64
	SwapsTotal() uint64
}

// NewMux builds the API router.
func NewMux(svc JobService, backends BackendService, validator *upload.Validator) http.Handler {
	start := time.Now()

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	if len(corsAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}))
	}

	r.Post("/api/jobs", func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes+(1<<16))
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		file, hdr, err := req.FormFile("file")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		uploadID := uuid.New().String()
		inputPath, err := validator.Save(uploadID, hdr.Filename, hdr.Header.Get("Content-Type"), file)
		if err != nil {
			switch {
			case upload.IsTooLarge(err):
				writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			case upload.IsUnsupportedType(err):
				writeJSONError(w, http.StatusUnsupportedMediaType, err.Error())
			case upload.IsInvalidImage(err):
				writeJSONError(w, http.StatusBadRequest, err.Error())
			default:
				writeJSONError(w, http.StatusInternalServerError, "failed to store upload")
			}
			logWarn().Err(err).Str("filename", hdr.Filename).Msg("upload rejected")
			return
		}

		jobID := svc.Submit(inputPath, req.FormValue("backend"))
		logInfo().Str("job", jobID).Msg("job created")
		writeJSON(w, types.SubmitResponse{JobID: jobID})
	})

	r.Get("/api/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		view, err := svc.Status(chi.URLParam(req, "id"))
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, view)
	})

	r.Delete("/api/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if _, err := svc.Status(id); err != nil {
			writeJSONError(w, http.StatusNotFound, "job not found")
			return
		}
		// Already-terminal cancels are a no-op, reported as false.
		writeJSON(w, types.CancelResponse{Cancelled: svc.Cancel(id)})
	})

	r.Get("/api/jobs/{id}/result", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		path, err := svc.Result(id)
		if err != nil {
			switch {
			case jobs.IsNotFound(err):
				writeJSONError(w, http.StatusNotFound, "job not found")
			case jobs.IsNotReady(err):
				writeJSONError(w, http.StatusConflict, "job not completed")
			default:
				writeJSONError(w, http.StatusInternalServerError, "failed to resolve result")
			}
			return
		}
		if _, err := os.Stat(path); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "result missing")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
		http.ServeFile(w, req, path)
	})

	r.Get("/api/backends", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, types.BackendsResponse{Backends: backends.Backends()})
	})

	r.Get("/api/health", func(w http.ResponseWriter, req *http.Request) {
		degraded := backends.Degraded()
		status := "ok"
		if len(degraded) > 0 {
			status = "degraded"
		}
		writeJSON(w, types.HealthResponse{
			Status:         status,
			CurrentBackend: backends.Current(),
			Device:         string(backends.Device()),
			Degraded:       degraded,
		})
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		submitted, byStatus := svc.Totals()
		writeJSON(w, types.StatusResponse{
			QueueLen:       svc.QueueLen(),
			Running:        svc.Running(),
			MaxConcurrent:  svc.MaxConcurrent(),
			SubmittedTotal: submitted,
			CompletedTotal: byStatus,
			CurrentBackend: backends.Current(),
			LoadsTotal:     backends.LoadsTotal(),
			SwapsTotal:     backends.SwapsTotal(),
			Device:         string(backends.Device()),
			UptimeSeconds:  int64(time.Since(start).Seconds()),
			ServerTimeUnix: time.Now().Unix(),
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if len(backends.Backends()) > 0 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no backends"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
