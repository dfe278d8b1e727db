package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var testNow = time.Date(2024, 6, 15, 15, 10, 0, 0, time.UTC)

func testWriter(fw *fakeWriter) *Writer {
	return &Writer{
		writer: fw,
		clock:  clockwork.NewFakeClockAt(testNow),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{Records: []domain.Record{
		{
			MunicipalityCode:   "5201405",
			MunicipalityName:   "Aparecida de Goiânia",
			WeekStart:          time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
			EpiWeek:            202423,
			CasesReported:      domain.Num(30),
			AlertLevel:         domain.AlertYellow,
			ReproductionNumber: domain.Num(1.1),
		},
		{
			MunicipalityCode: "5208707",
			MunicipalityName: "Goiânia",
			WeekStart:        time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
			EpiWeek:          202423,
			CasesReported:    domain.Num(150),
			CasesEstimated:   domain.Num(170),
			AlertLevel:       domain.AlertRed,
		},
		{MunicipalityName: "no code"},
	}}
}

func TestSerializeToMessage(t *testing.T) {
	snap := AlertSnapshot{
		Disease:          domain.Dengue,
		State:            "GO",
		MunicipalityCode: "5208707",
		WeekStart:        "2024-06-03",
		AlertLevel:       4,
		AlertName:        "Red",
		PublishedAt:      testNow,
	}

	msg, err := serializeToMessage(snap)
	require.NoError(t, err)

	assert.Equal(t, []byte("dengue/5208707"), msg.Key)
	assert.Contains(t, string(msg.Value), `"alert_name":"Red"`)
	assert.Len(t, msg.Headers, 3)
	assert.Equal(t, "disease", msg.Headers[0].Key)
	assert.Equal(t, []byte("dengue"), msg.Headers[0].Value)
	assert.Equal(t, "week_start", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-06-03"), msg.Headers[1].Value)
	assert.Equal(t, "published_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(testNow.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestWriter_PublishSnapshot(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)

	require.NoError(t, w.PublishSnapshot(context.Background(), domain.Dengue, "GO", testSnapshot()))
	require.Len(t, fw.msgs, 2, "records without a code are skipped")

	var got AlertSnapshot
	require.NoError(t, json.Unmarshal(fw.msgs[1].Value, &got))
	assert.Equal(t, AlertSnapshot{
		Disease:          domain.Dengue,
		State:            "GO",
		MunicipalityCode: "5208707",
		MunicipalityName: "Goiânia",
		WeekStart:        "2024-06-03",
		EpiWeek:          202423,
		AlertLevel:       4,
		AlertName:        "Red",
		CasesReported:    150,
		CasesEstimated:   170,
		PublishedAt:      testNow,
	}, got)
}

func TestWriter_PublishSnapshot_Empty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("must not be called")}
	w := testWriter(fw)

	assert.NoError(t, w.PublishSnapshot(context.Background(), domain.Dengue, "GO", domain.Snapshot{}))
}

func TestWriter_PublishSnapshot_WriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	w := testWriter(fw)

	err := w.PublishSnapshot(context.Background(), domain.Zika, "GO", testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish 2 snapshots")
}

func TestWriter_Close(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, testWriter(fw).Close())
	assert.True(t, fw.closed)
}
