package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chefmate-backend/internal/models"
)

const evalQueue = "queue:eval-run"

type agentService interface {
	Respond(ctx context.Context, messages []models.Message) ([]models.Message, error)
}

type evalStore interface {
	GetResults(ctx context.Context, jobID uuid.UUID) ([]*models.EvalResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
	SetResult(ctx context.Context, jobID uuid.UUID, seq int, response, errMsg *string, latencyMS *int) error
	IncrementCompleted(ctx context.Context, jobID uuid.UUID) (int, error)
	ResetProgress(ctx context.Context, jobID uuid.UUID) error
	CountOutcomes(ctx context.Context, jobID uuid.UUID) (succeeded, failed int, err error)
}

// Pool runs evaluation jobs from the Redis queue: each job is a batch of
// standalone queries pushed through the agent with bounded concurrency.
type Pool struct {
	redis         *redis.Client
	agent         agentService
	evalRepo      evalStore
	workerCount   int
	maxConcurrent int
	stopChan      chan struct{}
}

func NewPool(redisClient *redis.Client, agent agentService, evalRepo evalStore, workerCount, maxConcurrent int) *Pool {
	return &Pool{
		redis:         redisClient,
		agent:         agent,
		evalRepo:      evalRepo,
		workerCount:   workerCount,
		maxConcurrent: maxConcurrent,
		stopChan:      make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d eval worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Eval worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, evalQueue).Result()
		if err != nil {
			continue // Timeout or error, poll again
		}

		if len(result) < 2 {
			continue
		}

		var job models.EvalJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Eval worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := "job_lock:" + job.ID.String()
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Eval worker %d: running job %s (%d queries)", id, job.ID, job.Total)

		p.evalRepo.UpdateStatus(ctx, job.ID, "processing")

		if err := p.runJob(ctx, &job); err != nil {
			p.handleFailure(ctx, &job, err)
		} else {
			p.handleSuccess(ctx, &job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

// runJob pushes every query of the job through the agent. Provider errors
// land on the result row and do not fail the job; storage errors do.
func (p *Pool) runJob(ctx context.Context, job *models.EvalJob) error {
	results, err := p.evalRepo.GetResults(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	// A retry re-runs the whole batch, so the progress counter starts over.
	if job.RetryCount > 0 {
		if err := p.evalRepo.ResetProgress(ctx, job.ID); err != nil {
			return fmt.Errorf("failed to reset progress: %w", err)
		}
	}

	sem := make(chan struct{}, p.maxConcurrent)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var jobErr error

	for _, res := range results {
		wg.Add(1)
		sem <- struct{}{}
		go func(res *models.EvalResult) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := p.runQuery(ctx, job, res); err != nil {
				mu.Lock()
				if jobErr == nil {
					jobErr = err
				}
				mu.Unlock()
			}
		}(res)
	}

	wg.Wait()
	return jobErr
}

func (p *Pool) runQuery(ctx context.Context, job *models.EvalJob, res *models.EvalResult) error {
	// Each query is a fresh one-turn conversation; the agent prepends the
	// system prompt.
	start := time.Now()
	updated, err := p.agent.Respond(ctx, []models.Message{{Role: models.RoleUser, Content: res.Query}})
	latency := int(time.Since(start).Milliseconds())

	var response, errMsg *string
	if err != nil {
		msg := err.Error()
		errMsg = &msg
		log.Printf("Eval job %s query %d failed: %v", job.ID, res.Seq, err)
	} else {
		reply := updated[len(updated)-1].Content
		response = &reply
	}

	if err := p.evalRepo.SetResult(ctx, job.ID, res.Seq, response, errMsg, &latency); err != nil {
		return fmt.Errorf("failed to store result %d: %w", res.Seq, err)
	}

	completed, err := p.evalRepo.IncrementCompleted(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	p.publish(ctx, job.SessionID, models.WSMessage{
		Type: "progress",
		Payload: models.ProgressUpdate{
			JobID:     job.ID,
			Completed: completed,
			Total:     job.Total,
		},
	})

	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.EvalJob) {
	p.evalRepo.UpdateStatus(ctx, job.ID, "completed")

	succeeded, failed, err := p.evalRepo.CountOutcomes(ctx, job.ID)
	if err != nil {
		log.Printf("failed to count outcomes for eval job %s: %v", job.ID, err)
	}

	p.publish(ctx, job.SessionID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:     job.ID,
			Total:     job.Total,
			Succeeded: succeeded,
			Failed:    failed,
		},
	})

	log.Printf("Eval job %s completed (%d ok, %d failed)", job.ID, succeeded, failed)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.EvalJob, err error) {
	job.RetryCount++
	errMsg := err.Error()

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	if job.RetryCount < maxRetries {
		// Re-queue with backoff
		backoff := retryBackoff(job.RetryCount)
		log.Printf("Eval job %s failed (attempt %d): %s; retrying in %s", job.ID, job.RetryCount, errMsg, backoff)
		p.evalRepo.UpdateStatus(ctx, job.ID, "pending")
		p.evalRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		jobBytes, _ := json.Marshal(job)
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), evalQueue, string(jobBytes))
		})
	} else {
		// Max retries reached
		log.Printf("Eval job %s failed permanently: %s", job.ID, errMsg)
		p.evalRepo.UpdateStatus(ctx, job.ID, "failed")
		p.evalRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		p.publish(ctx, job.SessionID, models.WSMessage{
			Type: "error",
			Payload: models.ErrorEvent{
				JobID:        job.ID,
				ErrorCode:    "JOB_FAILED",
				ErrorMessage: errMsg,
			},
		})
	}
}

func (p *Pool) publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	if p.redis == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	p.redis.Publish(ctx, "session_updates:"+sessionID.String(), data)
}

func retryBackoff(retryCount int) time.Duration {
	return time.Duration(1<<uint(retryCount)) * time.Second
}
