//go:build protogen

package settings

import (
	"context"
	"time"

	calendarv1 "github.com/slotwise/slotwise/protos/gen/calendar/v1"
	"github.com/slotwise/slotwise/libs/grpcx"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// remoteProvider reads calendar settings over the calendar-settings
// service's gRPC API instead of its tables. Requires the generated stubs
// (make protogen).
type remoteProvider struct {
	client calendarv1.CalendarSettingsClient
}

func NewRemoteProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &remoteProvider{client: calendarv1.NewCalendarSettingsClient(conn)}, nil
}

func (p *remoteProvider) Profile(ctx context.Context, ownerID string) (Profile, error) {
	resp, err := p.client.GetProfile(ctx, &calendarv1.ProfileRequest{OwnerId: ownerID})
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		OwnerID:         ownerID,
		Timezone:        resp.GetTimezone(),
		CalendarName:    resp.GetCalendarName(),
		DefaultDuration: time.Duration(resp.GetDefaultDurationMinutes()) * time.Minute,
	}, nil
}

func (p *remoteProvider) WorkingHours(ctx context.Context, ownerID string) ([]WorkingHourRule, error) {
	resp, err := p.client.ListWorkingHours(ctx, &calendarv1.WorkingHoursRequest{OwnerId: ownerID})
	if err != nil {
		return nil, err
	}
	out := make([]WorkingHourRule, 0, len(resp.GetRules()))
	for _, r := range resp.GetRules() {
		out = append(out, WorkingHourRule{
			OwnerID:     ownerID,
			Weekday:     time.Weekday(r.GetWeekday()),
			StartMinute: int(r.GetStartMinute()),
			EndMinute:   int(r.GetEndMinute()),
		})
	}
	return out, nil
}

func (p *remoteProvider) Exceptions(ctx context.Context, ownerID string, from, to time.Time) ([]AvailabilityException, error) {
	resp, err := p.client.ListExceptions(ctx, &calendarv1.ExceptionsRequest{
		OwnerId: ownerID,
		From:    timestamppb.New(from),
		To:      timestamppb.New(to),
	})
	if err != nil {
		return nil, err
	}
	out := make([]AvailabilityException, 0, len(resp.GetExceptions()))
	for _, e := range resp.GetExceptions() {
		out = append(out, AvailabilityException{
			OwnerID:     ownerID,
			Date:        e.GetDate(),
			Kind:        ExceptionKind(e.GetKind()),
			StartMinute: int(e.GetStartMinute()),
			EndMinute:   int(e.GetEndMinute()),
		})
	}
	return out, nil
}

func (p *remoteProvider) BufferPolicy(ctx context.Context, ownerID string) (BufferPolicy, error) {
	resp, err := p.client.GetBufferPolicy(ctx, &calendarv1.BufferPolicyRequest{OwnerId: ownerID})
	if err != nil {
		return BufferPolicy{}, err
	}
	return BufferPolicy{
		OwnerID:    ownerID,
		PreBuffer:  time.Duration(resp.GetPreMinutes()) * time.Minute,
		PostBuffer: time.Duration(resp.GetPostMinutes()) * time.Minute,
		MinNotice:  time.Duration(resp.GetMinNoticeMinutes()) * time.Minute,
		MaxAdvance: time.Duration(resp.GetMaxAdvanceMinutes()) * time.Minute,
	}, nil
}

func (p *remoteProvider) EventType(ctx context.Context, ownerID, eventTypeID string) (EventType, error) {
	resp, err := p.client.GetEventType(ctx, &calendarv1.EventTypeRequest{
		OwnerId:     ownerID,
		EventTypeId: eventTypeID,
	})
	if err != nil {
		return EventType{}, err
	}
	et := EventType{
		ID:       resp.GetId(),
		OwnerID:  ownerID,
		Name:     resp.GetName(),
		Duration: time.Duration(resp.GetDurationMinutes()) * time.Minute,
		SlotStep: time.Duration(resp.GetSlotStepMinutes()) * time.Minute,
		Active:   resp.GetActive(),
	}
	if resp.GetMinNoticeMinutes() > 0 {
		d := time.Duration(resp.GetMinNoticeMinutes()) * time.Minute
		et.MinNotice = &d
	}
	if resp.GetMaxAdvanceMinutes() > 0 {
		d := time.Duration(resp.GetMaxAdvanceMinutes()) * time.Minute
		et.MaxAdvance = &d
	}
	return et, nil
}
