package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/arbovirus-dashboard/internal/config"
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

// AlertSnapshot is the message published for one municipality's latest week.
type AlertSnapshot struct {
	Disease          domain.Disease `json:"disease"`
	State            string         `json:"state"`
	MunicipalityCode string         `json:"municipality_code"`
	MunicipalityName string         `json:"municipality_name"`
	WeekStart        string         `json:"week_start"`
	EpiWeek          int            `json:"epi_week"`
	AlertLevel       int            `json:"alert_level"`
	AlertName        string         `json:"alert_name"`
	CasesReported    float64        `json:"cases_reported"`
	CasesEstimated   float64        `json:"cases_estimated"`
	Incidence        float64        `json:"incidence_per_100k"`
	Rt               float64        `json:"rt"`
	PublishedAt      time.Time      `json:"published_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes alert snapshots to a Kafka topic.
// It implements pipeline.SnapshotPublisher.
type Writer struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSnapshotTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// PublishSnapshot writes one message per municipality in a single
// WriteMessages call. Messages are keyed by disease and municipality code so
// a municipality's history stays on one partition.
func (w *Writer) PublishSnapshot(ctx context.Context, disease domain.Disease, uf string, s domain.Snapshot) error {
	if s.Len() == 0 {
		return nil
	}
	now := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, 0, s.Len())
	for _, r := range s.Records {
		if r.MunicipalityCode == "" {
			continue
		}
		msg, err := serializeToMessage(newAlertSnapshot(disease, uf, r, now))
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d snapshots: %w", len(msgs), err)
	}
	w.logger.Debug("snapshots written", "disease", disease, "uf", uf, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func newAlertSnapshot(disease domain.Disease, uf string, r domain.Record, now time.Time) AlertSnapshot {
	snap := AlertSnapshot{
		Disease:          disease,
		State:            uf,
		MunicipalityCode: r.MunicipalityCode,
		MunicipalityName: r.MunicipalityName,
		EpiWeek:          r.EpiWeek,
		AlertLevel:       int(r.AlertLevel),
		AlertName:        r.AlertLevel.Name(),
		CasesReported:    r.CasesReported.OrZero(),
		CasesEstimated:   r.CasesEstimated.OrZero(),
		Incidence:        r.IncidencePer100k.OrZero(),
		Rt:               r.ReproductionNumber.OrZero(),
		PublishedAt:      now,
	}
	if r.HasDate() {
		snap.WeekStart = r.WeekStart.Format("2006-01-02")
	}
	return snap
}

// serializeToMessage marshals an AlertSnapshot into a Kafka message.
func serializeToMessage(snap AlertSnapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(string(snap.Disease) + "/" + snap.MunicipalityCode),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "disease", Value: []byte(snap.Disease)},
			{Key: "week_start", Value: []byte(snap.WeekStart)},
			{Key: "published_at", Value: []byte(snap.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
