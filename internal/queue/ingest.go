package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wdkg/internal/util"
	"wdkg/pkg/ingest"
	"wdkg/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// QueueIngestMsg is the wire format on ingest_queue: one or more document
// batches plus a run ID correlating the log lines of the run.
type QueueIngestMsg struct {
	RunID     string                 `json:"run_id"`
	Documents []ingest.DocumentBatch `json:"documents"`
}

// PublishIngest enqueues document batches for the worker and returns the
// run ID assigned to them.
func PublishIngest(ch *amqp091.Channel, documents []ingest.DocumentBatch) (string, error) {
	msg := QueueIngestMsg{
		RunID:     util.NewRunID(),
		Documents: documents,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	if err := PublishFIFO(ch, IngestQueue, b); err != nil {
		return "", err
	}
	return msg.RunID, nil
}

// ProcessIngestMessage handles one ingest_queue delivery. Malformed records
// inside the batches are skipped and reported by the service; a returned
// error means the whole message should be retried.
func ProcessIngestMessage(
	ctx context.Context,
	svc *ingest.Service,
	msg string,
) error {
	data := new(QueueIngestMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to decode ingest message: %w", err)
	}
	if len(data.Documents) == 0 {
		logger.Warn("[Queue] Ingest message without documents", "run_id", data.RunID)
		return nil
	}

	start := time.Now()
	report, err := svc.IngestBatch(ctx, data.Documents)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Ingest run complete",
		"run_id", data.RunID,
		"documents", report.Documents(),
		"sentences", report.Sentences(),
		"skipped", report.Skipped(),
		"relationships", report.Relationships(),
		"duration_sec", time.Since(start).Seconds(),
	)
	return nil
}
