//go:build !protogen

package settings

// NewRemoteProvider returns the gRPC-backed provider when built with the
// protogen tag (after stub generation). In default builds it returns nil and
// callers fall back to direct storage reads.
func NewRemoteProvider(_ string) (Provider, error) {
	return nil, nil
}
