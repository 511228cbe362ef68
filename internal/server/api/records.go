package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/services"
	"github.com/kamikazebr/therapy-records/pkg/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Query parameters of the search endpoints that are not field filters.
var searchParams = map[string]bool{"from": true, "to": true, "sort": true, "columns": true}

type RecordHandler struct {
	records   *services.RecordService
	snapshots *services.SnapshotExporter
	forwarder *services.Forwarder
	logger    *zap.Logger
}

func NewRecordHandler(
	records *services.RecordService,
	snapshots *services.SnapshotExporter,
	forwarder *services.Forwarder,
	logger *zap.Logger,
) *RecordHandler {
	return &RecordHandler{
		records:   records,
		snapshots: snapshots,
		forwarder: forwarder,
		logger:    logger,
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ListRecords regenerates the snapshot and returns it wrapped in an envelope.
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Export(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, models.RecordsResponse{
		Status:    statusSuccess,
		Count:     snap.Count,
		Data:      json.RawMessage(snap.Data),
		Timestamp: timestamp(),
	})
}

func (h *RecordHandler) CountRecords(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Export(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, models.CountResponse{
		Status:    statusSuccess,
		Count:     snap.Count,
		Timestamp: timestamp(),
	})
}

// ExportSnapshot regenerates the snapshot and returns the document as written.
func (h *RecordHandler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Export(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Data)
}

func (h *RecordHandler) SearchRecords(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	result, err := h.records.Search(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	header, rows := services.Project(result.Records, req.Columns)
	respondJSON(w, http.StatusOK, models.SearchResponse{
		Status:   statusSuccess,
		Count:    len(rows),
		Degraded: result.Degraded,
		Columns:  header,
		Rows:     rows,
	})
}

// ExportSpreadsheet returns the search result as an XLSX workbook.
func (h *RecordHandler) ExportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	result, err := h.records.Search(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	data, err := services.WriteRecordsXLSX(result.Records, req.Columns)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="device_records.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ForwardSnapshot sends a fresh snapshot to the configured collector.
func (h *RecordHandler) ForwardSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.forwarder.Configured() {
		respondServiceError(w, h.logger, services.ErrForwardNotConfigured)
		return
	}

	snap, err := h.snapshots.Export(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	result, err := h.forwarder.Forward(r.Context(), snap)
	if err != nil {
		respondErrorJSON(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.ForwardResponse{
		Status:           statusSuccess,
		ExternalStatus:   result.StatusCode,
		ExternalResponse: result.Response,
		RecordsSent:      result.RecordsSent,
	})
}

func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.records.GetRecord(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, models.RecordResponse{
		Status:   statusSuccess,
		RecordID: record.ID,
		Data:     record.RecordFields,
	})
}

func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeRecordBody(w, r)
	if !ok {
		return
	}

	id, err := h.records.AddRecord(r.Context(), fields)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logMutation(r, "record created", id)
	respondJSON(w, http.StatusCreated, models.RecordMutationResponse{
		Status:   statusSuccess,
		Message:  fmt.Sprintf("Record %s added successfully", id),
		RecordID: id,
	})
}

func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	fields, ok := h.decodeRecordBody(w, r)
	if !ok {
		return
	}

	if err := h.records.UpdateRecord(r.Context(), id, fields); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logMutation(r, "record updated", id)
	respondJSON(w, http.StatusOK, models.RecordMutationResponse{
		Status:   statusSuccess,
		Message:  fmt.Sprintf("Record %s updated successfully", id),
		RecordID: id,
	})
}

func (h *RecordHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.records.DeleteRecord(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logMutation(r, "record deleted", id)
	respondJSON(w, http.StatusOK, models.RecordMutationResponse{
		Status:   statusSuccess,
		Message:  fmt.Sprintf("Record %s deleted successfully", id),
		RecordID: id,
	})
}

// logMutation tags the entry with the device serial when the request carried a token.
func (h *RecordHandler) logMutation(r *http.Request, msg, id string) {
	fields := []zap.Field{zap.String("record_id", id)}
	if claims := GetDeviceClaims(r); claims != nil {
		fields = append(fields, zap.String("device_serial", claims.SerialNumber))
	}
	h.logger.Info(msg, fields...)
}

// decodeRecordBody enforces the JSON content type, decodes the body and
// type-checks every known field. It writes the error response itself.
func (h *RecordHandler) decodeRecordBody(w http.ResponseWriter, r *http.Request) (models.RecordFields, bool) {
	var fields models.RecordFields

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		respondErrorJSON(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return fields, false
	}

	var body map[string]interface{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || len(body) == 0 {
		respondErrorJSON(w, http.StatusBadRequest, "No input data provided or invalid JSON")
		return fields, false
	}

	if _, ok := body[models.FieldStartDate]; !ok {
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Status:  statusError,
			Error:   http.StatusText(http.StatusBadRequest),
			Message: "Missing required fields: " + models.FieldStartDate,
			Field:   models.FieldStartDate,
		})
		return fields, false
	}

	fields, err = recordFieldsFromBody(body)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return fields, false
	}
	return fields, true
}

// recordFieldsFromBody converts a decoded JSON object into record fields.
// Measurement fields accept strings or numbers, the rest strings only.
// null reads as "" and unknown keys are ignored.
func recordFieldsFromBody(body map[string]interface{}) (models.RecordFields, error) {
	var fields models.RecordFields
	for _, name := range models.FieldNames {
		raw, present := body[name]
		if !present || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			fields.Set(name, v)
		case json.Number:
			if !models.NumericFields[name] {
				return fields, &services.ValidationError{Field: name, Message: "must be a string"}
			}
			fields.Set(name, v.String())
		default:
			msg := "must be a string"
			if models.NumericFields[name] {
				msg = "must be a string or number"
			}
			return fields, &services.ValidationError{Field: name, Message: msg}
		}
	}
	return fields, nil
}

// parseQueryRequest reads from, to, sort and columns; every other query
// parameter is a field filter.
func parseQueryRequest(r *http.Request) (services.QueryRequest, error) {
	q := r.URL.Query()
	req := services.QueryRequest{
		From:   q.Get("from"),
		To:     q.Get("to"),
		SortBy: q.Get("sort"),
	}

	if raw := q.Get("columns"); raw != "" {
		columns, err := services.ParseColumns(strings.Split(raw, ","))
		if err != nil {
			return req, err
		}
		req.Columns = columns
	}

	for key, values := range q {
		if searchParams[key] || len(values) == 0 {
			continue
		}
		if req.Filters == nil {
			req.Filters = make(map[string]string)
		}
		req.Filters[key] = values[0]
	}
	return req, nil
}
