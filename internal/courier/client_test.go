package courier

import (
	"context"
	"errors"
	"testing"
	"time"

	"riskhub_v1_202610/internal/model"
)

func TestTrackingStatus_VoucherStatus(t *testing.T) {
	tests := []struct {
		name   string
		status TrackingStatus
		want   string
	}{
		{"returned wins", TrackingStatus{Delivered: true, Returned: true}, model.VoucherStatusReturned},
		{"delivered", TrackingStatus{Delivered: true}, model.VoucherStatusDelivered},
		{"known status", TrackingStatus{Status: " Shipped "}, model.VoucherStatusShipped},
		{"failed status", TrackingStatus{Status: "failed"}, model.VoucherStatusFailed},
		{"unknown with events", TrackingStatus{Status: "ΣΕ ΜΕΤΑΦΟΡΑ", Events: []TrackingEvent{{Date: "2024-03-01"}}}, model.VoucherStatusInTransit},
		{"unknown without events", TrackingStatus{Status: "registered"}, model.VoucherStatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.VoucherStatus(); got != tt.want {
				t.Errorf("VoucherStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrackingEvent_Timestamp(t *testing.T) {
	tests := []struct {
		ev      TrackingEvent
		want    time.Time
		wantErr bool
	}{
		{TrackingEvent{Date: "2024-03-01", Time: "14:30"}, time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC), false},
		{TrackingEvent{Date: "2024-03-01", Time: "14:30:15"}, time.Date(2024, 3, 1, 14, 30, 15, 0, time.UTC), false},
		{TrackingEvent{Date: "01/03/2024", Time: "09:05"}, time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC), false},
		{TrackingEvent{Date: "2024-03-01"}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{TrackingEvent{Date: "yesterday", Time: "10:00"}, time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := tt.ev.Timestamp(nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("Timestamp(%+v) err = %v, wantErr %v", tt.ev, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Timestamp(%+v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}

func TestTrackingEvent_Code(t *testing.T) {
	if got := (TrackingEvent{StatusTitle: "Out for Delivery"}).Code(); got != "out_for_delivery" {
		t.Errorf("Code() = %q", got)
	}
	if got := (TrackingEvent{}).Code(); got != "unknown" {
		t.Errorf("empty Code() = %q", got)
	}
}

type stubClient struct{ name string }

func (s stubClient) Name() string { return s.name }

func (s stubClient) GetVoucherStatus(context.Context, string) (*TrackingStatus, error) {
	return &TrackingStatus{}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubClient{"ACS"}, stubClient{"elta"})

	if _, err := r.Get("acs"); err != nil {
		t.Errorf("Get(acs): %v", err)
	}
	if _, err := r.Get("Elta"); err != nil {
		t.Errorf("Get(Elta): %v", err)
	}
	if _, err := r.Get("dhl"); !errors.Is(err, ErrUnknownCourier) {
		t.Errorf("Get(dhl) err = %v, want ErrUnknownCourier", err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "acs" || names[1] != "elta" {
		t.Errorf("Names() = %v", names)
	}
}
