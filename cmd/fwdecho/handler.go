package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phax/ph-web-sub004/forwarded"
	"github.com/phax/ph-web-sub004/httpfwd"
	"github.com/phax/ph-web-sub004/multipart"
)

const headerRequestID = "X-Request-Id"

type echoResponse struct {
	RequestID string           `json:"request_id"`
	Peer      string           `json:"peer"`
	Client    string           `json:"client"`
	Trusted   bool             `json:"trusted"`
	Host      string           `json:"host"`
	Proto     string           `json:"proto"`
	Chain     forwarded.Header `json:"chain"`
	Outbound  string           `json:"outbound"`
}

type uploadPart struct {
	Name        string `json:"name,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
}

type server struct {
	cfg *config
	log *slog.Logger
}

func newHandler(cfg *config, logger *slog.Logger, reg *prometheus.Registry) http.Handler {
	s := &server{cfg: cfg, log: logger}
	opts := []httpfwd.Option{
		httpfwd.WithTrustedProxies(cfg.trusted...),
		httpfwd.WithMetrics(httpfwd.NewMetrics("fwdecho", reg)),
		httpfwd.WithLogger(logger),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", httpfwd.Handler(http.HandlerFunc(s.echo), opts...))
	mux.Handle("POST /upload", http.HandlerFunc(s.upload))
	mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return withRequestID(mux)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response",
			slog.String("request_id", r.Header.Get(headerRequestID)),
			slog.Any("error", err),
		)
	}
}

func (s *server) echo(w http.ResponseWriter, r *http.Request) {
	info, _ := httpfwd.FromContext(r.Context())
	out := httpfwd.Outbound(r, s.cfg.by)

	resp := echoResponse{
		RequestID: r.Header.Get(headerRequestID),
		Client:    info.Client.String(),
		Trusted:   info.Trusted,
		Host:      info.Host,
		Proto:     info.Proto,
		Chain:     info.Chain,
		Outbound:  out.String(),
	}
	if info.Peer.IsValid() {
		resp.Peer = info.Peer.String()
	}

	s.log.Debug("echo",
		slog.String("request_id", resp.RequestID),
		slog.String("client", resp.Client),
		slog.Bool("trusted", resp.Trusted),
	)
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	boundary, err := multipart.BoundaryFromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		s.writeJSON(w, r, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	sc, err := multipart.NewScanner(body, boundary, multipart.WithLogger(s.log))
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	parts := []uploadPart{}
	for {
		p, err := sc.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			_, err = io.Copy(io.Discard, p)
			parts = append(parts, uploadPart{p.FormName(), p.FileName(), p.ContentType(), p.BytesRead()})
		}
		if err != nil {
			code := http.StatusBadRequest
			if maxErr := (*http.MaxBytesError)(nil); errors.As(err, &maxErr) {
				code = http.StatusRequestEntityTooLarge
			}
			s.log.Debug("upload rejected",
				slog.String("request_id", r.Header.Get(headerRequestID)),
				slog.Any("error", err),
			)
			s.writeJSON(w, r, code, map[string]string{"error": err.Error()})
			return
		}
	}
	s.writeJSON(w, r, http.StatusOK, parts)
}
