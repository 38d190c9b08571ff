package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/infrastructure/resilience"
)

func TestMedicationChangedRoundTrip(t *testing.T) {
	data, err := encodeMedicationChanged("42", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	id, err := decodeMedicationChanged(data)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if id != "42" {
		t.Fatalf("expected id 42, got %q", id)
	}
}

func TestDecodeMedicationChangedAcceptsBareID(t *testing.T) {
	id, err := decodeMedicationChanged([]byte(" 0001-aspirin \n"))
	if err != nil || id != "0001-aspirin" {
		t.Fatalf("unexpected decode result %q, %v", id, err)
	}
}

func TestDecodeMedicationChangedRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"", "   ", `{"id":""}`, `{"id":`} {
		if _, err := decodeMedicationChanged([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "no servers", err: fmt.Errorf("publish: %w", nats.ErrNoServers), retryable: true, record: true},
		{name: "timeout", err: nats.ErrTimeout, retryable: true, record: true},
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
		{name: "bad subject", err: nats.ErrBadSubject, retryable: false, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyNATSError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("unexpected classification %+v", got)
			}
		})
	}
}

func TestWrapTemporaryMarksConnectionLoss(t *testing.T) {
	err := resilience.WrapTemporary("nats publish", nats.ErrConnectionClosed, classifyNATSError)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	plain := errors.New("permission denied")
	if got := resilience.WrapTemporary("nats publish", plain, classifyNATSError); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("unexpected temporary wrap for %v", got)
	}
}
