package routing

import "context"

// Origin identifies who asked for a call. The HTTP layer fills it in; audit
// records and dispatch failure logs read it back.
type Origin struct {
	ClientIP  string
	RequestID string
}

type originKey struct{}

func WithOrigin(ctx context.Context, o Origin) context.Context {
	if o == (Origin{}) {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, o)
}

// OriginFrom returns the zero Origin for calls made outside a request.
func OriginFrom(ctx context.Context) Origin {
	o, _ := ctx.Value(originKey{}).(Origin)
	return o
}
