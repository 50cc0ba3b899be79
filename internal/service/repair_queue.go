package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Amdreaith/elearning-api/pkg/config"
	"github.com/Amdreaith/elearning-api/pkg/jobs"
)

const jobTypeProjectionRepair = "projection_repair"

// repairPayload names the (student, course) pair whose projections drifted.
type repairPayload struct {
	StudentID primitive.ObjectID
	CourseID  primitive.ObjectID
}

// RepairQueue runs targeted projection repairs in the background. The
// enrollment protocol enqueues a pair whenever a post-ledger projection step
// fails; workers replay the reconciliation until it sticks or retries run
// out.
type RepairQueue struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewRepairQueue constructs the repair queue around the reconciler.
func NewRepairQueue(reconciler *ReconcilerService, cfg config.ReconcilerConfig, logger *zap.Logger) *RepairQueue {
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(repairPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return reconciler.ReconcilePair(ctx, payload.StudentID, payload.CourseID)
	}

	queue := jobs.NewQueue(jobTypeProjectionRepair, handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})

	return &RepairQueue{queue: queue, logger: logger}
}

// Start launches the worker pool.
func (q *RepairQueue) Start(ctx context.Context) {
	q.queue.Start(ctx)
}

// Stop drains the worker pool.
func (q *RepairQueue) Stop() {
	q.queue.Stop()
}

// ScheduleRepair enqueues a targeted repair for the pair. Enqueue failures
// are logged, not returned: the full reconciliation pass remains the
// backstop for drift that never got a repair job.
func (q *RepairQueue) ScheduleRepair(studentID, courseID primitive.ObjectID) {
	err := q.queue.Enqueue(jobs.Job{
		Type:    jobTypeProjectionRepair,
		Payload: repairPayload{StudentID: studentID, CourseID: courseID},
	})
	if err != nil {
		q.logger.Error("failed to schedule projection repair",
			zap.String("student_id", studentID.Hex()),
			zap.String("course_id", courseID.Hex()),
			zap.Error(err))
	}
}
