package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaQueue produces jobs to a topic named after the job. The record key is
// the job id; tenant, actor and trace ride along as headers so consumers can
// route without decoding the value.
type KafkaQueue struct {
	client *kgo.Client
	now    func() time.Time
}

func NewKafkaQueue(client *kgo.Client) *KafkaQueue {
	return &KafkaQueue{client: client, now: time.Now}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job Job) (string, error) {
	env := newEnvelope(job, q.now())
	value, err := env.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	record := &kgo.Record{
		Topic: job.Name,
		Key:   []byte(env.ID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "tenant_id", Value: []byte(env.TenantID)},
			{Key: "actor_id", Value: []byte(env.ActorID)},
			{Key: "trace_id", Value: []byte(env.TraceID)},
		},
	}
	if err := q.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", job.Name, err)
	}
	return env.ID, nil
}
