package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chefmate-backend/internal/middleware"
	"chefmate-backend/internal/models"
	"chefmate-backend/internal/services"
)

const maxEvalQueries = 200

type evalRepository interface {
	CreateJob(ctx context.Context, j *models.EvalJob, queries []string) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.EvalJob, error)
	ListJobsBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.EvalJob, error)
	GetResults(ctx context.Context, jobID uuid.UUID) ([]*models.EvalResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	HasActiveJobForSession(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// EvalHandler accepts batches of standalone queries, persists them as a job
// and hands the job to the worker pool over the Redis queue.
type EvalHandler struct {
	evalRepo evalRepository
	redis    *redis.Client
}

func NewEvalHandler(evalRepo evalRepository, redisClient *redis.Client) *EvalHandler {
	return &EvalHandler{evalRepo: evalRepo, redis: redisClient}
}

// Submit takes queries either as JSON {"queries": [...]} or as a multipart
// CSV upload with an id,query header, the format the bulk tester used.
func (h *EvalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	var queries []string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "CSV file is required", r))
			return
		}
		defer file.Close()

		queries, err = parseQueriesCSV(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
			return
		}
	} else {
		var req models.CreateEvalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
		queries = req.Queries
	}

	cleaned := make([]string, 0, len(queries))
	for _, q := range queries {
		if t := strings.TrimSpace(q); t != "" {
			cleaned = append(cleaned, t)
		}
	}

	if len(cleaned) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "At least one query is required", r))
		return
	}
	if len(cleaned) > maxEvalQueries {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Too many queries (max 200)", r))
		return
	}

	active, err := h.evalRepo.HasActiveJobForSession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to check running evaluations", r))
		return
	}
	if active {
		handleServiceError(w, r, &services.ConflictError{Message: "An evaluation run is already in progress for this session"})
		return
	}

	job := &models.EvalJob{SessionID: sessionID}
	if err := h.evalRepo.CreateJob(r.Context(), job, cleaned); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create evaluation job", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	if h.redis == nil {
		_ = h.evalRepo.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Evaluation queue is unavailable", r))
		return
	}

	if err := h.redis.LPush(r.Context(), "queue:eval-run", string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue eval job %s: %v", job.ID, err)
		_ = h.evalRepo.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue evaluation job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"total":  job.Total,
	})
}

func (h *EvalHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.ownedJob(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	results, err := h.evalRepo.GetResults(r.Context(), job.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch results", r))
		return
	}

	writeJSON(w, http.StatusOK, models.EvalJobResponse{Job: *job, Results: results})
}

func (h *EvalHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	jobs, err := h.evalRepo.ListJobsBySession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch evaluation jobs", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (h *EvalHandler) ownedJob(r *http.Request) (*models.EvalJob, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, &services.ValidationError{Fields: map[string]string{"id": "Invalid job ID"}}
	}

	job, err := h.evalRepo.GetJob(r.Context(), id)
	if err != nil {
		return nil, &services.NotFoundError{Message: "Evaluation job not found"}
	}

	if job.SessionID != middleware.GetSessionID(r.Context()) {
		return nil, &services.ForbiddenError{Message: "Access denied"}
	}

	return job, nil
}

// parseQueriesCSV reads an id,query file. Extra columns are ignored, short
// rows are skipped, query order is preserved.
func parseQueriesCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("CSV file is empty")
	}
	if err != nil {
		return nil, err
	}

	if len(header) < 2 ||
		!strings.EqualFold(strings.TrimSpace(header[0]), "id") ||
		!strings.EqualFold(strings.TrimSpace(header[1]), "query") {
		return nil, errors.New(`CSV header must be "id,query"`)
	}

	var queries []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 2 {
			continue
		}
		queries = append(queries, record[1])
	}

	return queries, nil
}
