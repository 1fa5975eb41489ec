package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/food-analyzer/pkg/normalizer"
	"github.com/menta2k/food-analyzer/pkg/nutrition"
)

const (
	fieldName = "image"

	msgNoFile       = "No image file provided."
	msgNoSelection  = "No image file selected."
	msgTooLarge     = "File too large."
	msgParseFailure = "Failed to parse the response from the AI model."
	msgUnexpected   = "An unexpected error occurred: "
)

type handler struct {
	estimator Estimator
	maxUpload int64
	maxDim    int
	quality   int
	log       *zap.Logger
}

type errorBody struct {
	Error       string `json:"error"`
	RawResponse string `json:"raw_response,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: msgTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgNoFile})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(fieldName)
	if err != nil {
		// a part with an empty filename is parsed as a plain value
		if _, ok := r.MultipartForm.Value[fieldName]; ok {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: msgNoSelection})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgNoFile})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, err)
		return
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}

	data, mediaType, resized := normalizer.Thumbnail(data, mediaType, h.maxDim, h.quality)
	h.log.Info("image received",
		zap.String("filename", header.Filename),
		zap.String("media_type", mediaType),
		zap.Int("size", len(data)),
		zap.Bool("resized", resized))

	body, err := h.estimator.Estimate(r.Context(), data, mediaType)
	if err != nil {
		var pe *nutrition.ParseError
		if errors.As(err, &pe) {
			h.log.Warn("unparsable model response", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgParseFailure, RawResponse: pe.Raw})
			return
		}
		h.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	h.log.Error("analysis failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgUnexpected + err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
