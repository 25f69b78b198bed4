package cloud

import "context"

// Gateway is the remote profile store contract. UpdateProfile must fail
// without side effects when the id does not exist, so callers can follow a
// failed update with CreateProfile
type Gateway interface {
	ListProfiles(ctx context.Context) ([]CloudProfile, error)
	GetProfile(ctx context.Context, id string) (*CloudProfile, error)
	CreateProfile(ctx context.Context, data ProfileData) (*CloudProfile, error)
	UpdateProfile(ctx context.Context, id string, data ProfileData) (*CloudProfile, error)
	DeleteProfile(ctx context.Context, id string) error
	GetVersions(ctx context.Context, id string) ([]ProfileVersion, error)
	Rollback(ctx context.Context, id string, version int) (*CloudProfile, error)
}
