package outbox

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	auditstore "vouch/internal/audit/store"
)

// TopicAuditEvents receives every committed audit entry.
const TopicAuditEvents = "audit.events"

// KafkaSink produces outbox rows to Kafka, keyed by tenant so a tenant's
// entries stay ordered within one partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(client *kgo.Client, topic string) *KafkaSink {
	if topic == "" {
		topic = TopicAuditEvents
	}
	return &KafkaSink{client: client, topic: topic}
}

func (k *KafkaSink) Publish(ctx context.Context, records []auditstore.OutboxRecord) error {
	batch := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		batch = append(batch, &kgo.Record{
			Topic: k.topic,
			Key:   []byte(rec.TenantID.String()),
			Value: rec.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_name", Value: []byte(rec.EventName)},
				{Key: "entry_id", Value: []byte(rec.ID.String())},
			},
		})
	}
	if err := k.client.ProduceSync(ctx, batch...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}
	return nil
}
