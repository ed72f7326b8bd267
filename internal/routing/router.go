package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"callbridge/internal/calls"
	"callbridge/internal/channel"
	"callbridge/internal/credentials"
	"callbridge/internal/directory"
	"callbridge/internal/metrics"
	"callbridge/internal/notify"
)

const DefaultCollaboratorTimeout = 5 * time.Second

var (
	ErrInvalidArgument = errors.New("routing: invalid argument")

	// ErrNumberNotFound means the dialed number is not allocated to anyone.
	ErrNumberNotFound = errors.New("routing: number not found")

	// ErrTargetOffline means the callee never registered a push endpoint.
	ErrTargetOffline = errors.New("routing: target offline")

	// ErrCollaboratorUnavailable wraps credential issuer failures and timeouts. Retryable.
	ErrCollaboratorUnavailable = errors.New("routing: collaborator unavailable")
)

type Resolver interface {
	Resolve(ctx context.Context, number string) (userID string, ok bool, err error)
}

type EndpointLookup interface {
	Lookup(ctx context.Context, userID string) (endpoint string, ok bool, err error)
}

type ChannelNamer interface {
	NewChannel(prefix string) (string, error)
}

// AuditLogger records routing outcomes. Best-effort.
type AuditLogger interface {
	LogCallRouted(ctx context.Context, e CallAuditEvent) error
	LogInviteDispatchFailed(ctx context.Context, e CallAuditEvent) error
}

type CallAuditEvent struct {
	CallerID     string
	Dialed       string
	TargetType   calls.TargetType
	TargetUserID string
	Channel      string
	IPAddress    string
	Reason       string
}

// CallRouter sets up calls: it decides the target of a dialed number, names a
// channel, obtains the caller's credential and, for user targets, pushes an
// invitation to the callee. It holds no per-call state.
type CallRouter struct {
	Directory  Resolver
	Endpoints  EndpointLookup
	Channels   ChannelNamer
	Issuer     credentials.Issuer
	Dispatcher notify.Dispatcher
	Audit      AuditLogger
	Log        *slog.Logger

	// Provider labels dispatch metrics.
	Provider string

	// Timeout bounds each collaborator call.
	Timeout       time.Duration
	CredentialTTL time.Duration
}

func NewCallRouter(dir Resolver, eps EndpointLookup, channels ChannelNamer, issuer credentials.Issuer, dispatcher notify.Dispatcher) *CallRouter {
	return &CallRouter{
		Directory:     dir,
		Endpoints:     eps,
		Channels:      channels,
		Issuer:        issuer,
		Dispatcher:    dispatcher,
		Timeout:       DefaultCollaboratorTimeout,
		CredentialTTL: credentials.DefaultTTL,
	}
}

// Decide resolves a dialed number to a routing decision. No side effects.
func (r *CallRouter) Decide(ctx context.Context, dialed string) (Decision, error) {
	dialed = strings.TrimSpace(dialed)
	if dialed == "" {
		return Decision{}, ErrInvalidArgument
	}
	if dialed == directory.AgentNumber {
		return Decision{TargetType: calls.TargetAgent, ChannelPrefix: channel.PrefixAgent}, nil
	}

	target, ok, err := r.Directory.Resolve(ctx, dialed)
	if err != nil {
		return Decision{}, fmt.Errorf("routing: resolve number: %w", err)
	}
	if !ok {
		return Decision{}, ErrNumberNotFound
	}

	ep, ok, err := r.Endpoints.Lookup(ctx, target)
	if err != nil {
		return Decision{}, fmt.Errorf("routing: lookup endpoint: %w", err)
	}
	if !ok {
		return Decision{TargetType: calls.TargetUser, TargetUserID: target}, ErrTargetOffline
	}

	return Decision{
		TargetType:    calls.TargetUser,
		TargetUserID:  target,
		Endpoint:      ep,
		ChannelPrefix: channel.PrefixCall,
	}, nil
}

// TriggerCall routes a call from callerID to the dialed number.
//
// Only the caller receives a credential here. The callee gets the caller's
// channel and credential in the push payload and may request its own via
// IssueChannelCredential.
func (r *CallRouter) TriggerCall(ctx context.Context, callerID, dialed string) (calls.Invite, error) {
	if strings.TrimSpace(callerID) == "" || strings.TrimSpace(dialed) == "" {
		return calls.Invite{}, ErrInvalidArgument
	}
	log := r.logger().With("caller_id", callerID, "dialed", dialed)

	d, err := r.Decide(ctx, dialed)
	if err != nil {
		r.observe(ctx, callerID, dialed, d, "", err)
		log.Info("call not routed", "err", err)
		return calls.Invite{}, err
	}

	ch, err := r.Channels.NewChannel(d.ChannelPrefix)
	if err != nil {
		r.observe(ctx, callerID, dialed, d, "", err)
		return calls.Invite{}, fmt.Errorf("routing: channel: %w", err)
	}

	cred, err := r.issue(ctx, ch, 0)
	if err != nil {
		r.observe(ctx, callerID, dialed, d, ch, err)
		log.Error("credential issue failed", "channel", ch, "err", err)
		return calls.Invite{}, err
	}

	if d.Dispatches() {
		r.dispatch(ctx, d, notify.Invite{Channel: ch, Credential: cred, CallerID: callerID}, callerID, dialed)
	}

	r.observe(ctx, callerID, dialed, d, ch, nil)
	log.Info("call routed", "target_type", d.TargetType, "target_user_id", d.TargetUserID, "channel", ch)

	return calls.Invite{TargetType: d.TargetType, ChannelName: ch, Credential: cred, UID: 0}, nil
}

// IssueChannelCredential mints a broadcaster credential for an arbitrary channel.
// The channel need not exist; it is not checked against routed calls.
func (r *CallRouter) IssueChannelCredential(ctx context.Context, channelName string, uid uint32) (string, error) {
	if strings.TrimSpace(channelName) == "" {
		return "", ErrInvalidArgument
	}
	return r.issue(ctx, channelName, uid)
}

func (r *CallRouter) issue(ctx context.Context, ch string, uid uint32) (string, error) {
	req := credentials.Request{
		Channel: ch,
		UID:     uid,
		Role:    credentials.RoleBroadcaster,
		TTL:     r.CredentialTTL,
	}

	start := time.Now()
	tok, err := callWithTimeout(ctx, r.timeout(), func(ctx context.Context) (string, error) {
		return r.Issuer.Issue(ctx, req)
	})
	metrics.CollaboratorDuration.WithLabelValues("credential_issuer").Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return tok, nil
	case errors.Is(err, credentials.ErrInvalidRequest):
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	default:
		return "", fmt.Errorf("%w: credential issuer: %w", ErrCollaboratorUnavailable, err)
	}
}

// dispatch pushes the invitation. Failure never fails the call.
func (r *CallRouter) dispatch(ctx context.Context, d Decision, inv notify.Invite, callerID, dialed string) {
	start := time.Now()
	_, err := callWithTimeout(ctx, r.timeout(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.Dispatcher.Dispatch(ctx, d.Endpoint, inv)
	})
	metrics.CollaboratorDuration.WithLabelValues("notification_dispatcher").Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.InviteDispatches.WithLabelValues(r.provider(), "sent").Inc()
		return
	}

	metrics.InviteDispatches.WithLabelValues(r.provider(), "failed").Inc()
	r.logger().Warn("call invite dispatch failed",
		"caller_id", callerID,
		"target_user_id", d.TargetUserID,
		"channel", inv.Channel,
		"request_id", OriginFrom(ctx).RequestID,
		"err", err,
	)
	if r.Audit != nil {
		e := CallAuditEvent{
			CallerID:     callerID,
			Dialed:       dialed,
			TargetType:   d.TargetType,
			TargetUserID: d.TargetUserID,
			Channel:      inv.Channel,
			IPAddress:    OriginFrom(ctx).ClientIP,
			Reason:       err.Error(),
		}
		if aerr := r.Audit.LogInviteDispatchFailed(ctx, e); aerr != nil {
			r.logger().Warn("audit dispatch failure failed", "err", aerr)
		}
	}
}

func (r *CallRouter) observe(ctx context.Context, callerID, dialed string, d Decision, ch string, err error) {
	tt := d.TargetType
	if tt == "" {
		tt = calls.TargetUser
	}
	metrics.CallsRouted.WithLabelValues(string(tt), outcome(err)).Inc()

	if err != nil || r.Audit == nil {
		return
	}
	aerr := r.Audit.LogCallRouted(ctx, CallAuditEvent{
		CallerID:     callerID,
		Dialed:       dialed,
		TargetType:   d.TargetType,
		TargetUserID: d.TargetUserID,
		Channel:      ch,
		IPAddress:    OriginFrom(ctx).ClientIP,
	})
	if aerr != nil {
		r.logger().Warn("audit call routed failed", "err", aerr)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNumberNotFound):
		return "number_not_found"
	case errors.Is(err, ErrTargetOffline):
		return "target_offline"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrCollaboratorUnavailable):
		return "collaborator_unavailable"
	default:
		return "error"
	}
}

func (r *CallRouter) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultCollaboratorTimeout
}

func (r *CallRouter) provider() string {
	if r.Provider != "" {
		return r.Provider
	}
	return "unknown"
}

func (r *CallRouter) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

var errCollaboratorPanic = errors.New("routing: collaborator panicked")

// callWithTimeout runs fn under a deadline and stops waiting once it expires,
// even if fn ignores its context. A panic in fn is returned as an error.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: fmt.Errorf("%w: %v", errCollaboratorPanic, p)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case res := <-ch:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
