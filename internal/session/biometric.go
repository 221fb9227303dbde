package session

import "context"

// Biometric abstracts the platform biometric capability (fingerprint or face
// authentication). The concrete provider is an external collaborator.
type Biometric interface {
	HasHardware(ctx context.Context) (bool, error)
	IsEnrolled(ctx context.Context) (bool, error)
	Authenticate(ctx context.Context, prompt string) (bool, error)
}

type unavailableBiometric struct{}

// Unavailable returns a biometric provider for platforms without hardware
// support; every check reports absence.
func Unavailable() Biometric {
	return unavailableBiometric{}
}

func (unavailableBiometric) HasHardware(context.Context) (bool, error) { return false, nil }
func (unavailableBiometric) IsEnrolled(context.Context) (bool, error) { return false, nil }
func (unavailableBiometric) Authenticate(context.Context, string) (bool, error) {
	return false, nil
}
