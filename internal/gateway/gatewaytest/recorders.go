// Package gatewaytest provides recording gateway doubles for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pediamatch/intake-service/internal/gateway"
)

// SMSCall records one SmsGateway.Send call.
type SMSCall struct {
	To   string
	Body string
}

// RecordingSMS records sends and fails them when Err is set.
type RecordingSMS struct {
	mu    sync.Mutex
	calls []SMSCall
	Err   error
}

var _ gateway.SmsGateway = (*RecordingSMS)(nil)

// Send records the call.
func (r *RecordingSMS) Send(_ context.Context, to, body string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, SMSCall{To: to, Body: body})
	if r.Err != nil {
		return "", r.Err
	}
	return fmt.Sprintf("SM%04d", len(r.calls)), nil
}

// Calls returns a copy of the recorded calls.
func (r *RecordingSMS) Calls() []SMSCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SMSCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// EmailCall records one EmailGateway.Send call.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// RecordingEmail records sends and fails them when Err is set.
type RecordingEmail struct {
	mu    sync.Mutex
	calls []EmailCall
	Err   error
}

var _ gateway.EmailGateway = (*RecordingEmail)(nil)

// Send records the call.
func (r *RecordingEmail) Send(_ context.Context, to, subject, body string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, EmailCall{To: to, Subject: subject, Body: body})
	if r.Err != nil {
		return "", r.Err
	}
	return fmt.Sprintf("email-%d", len(r.calls)), nil
}

// Calls returns a copy of the recorded calls.
func (r *RecordingEmail) Calls() []EmailCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EmailCall, len(r.calls))
	copy(out, r.calls)
	return out
}
