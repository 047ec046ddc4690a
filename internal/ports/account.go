package ports

import "context"

// AccountPort updates account attributes that the roster reads back as metrics.
type AccountPort interface {
	// UpdateMetadata merges fields into the account metadata of userID.
	// Returns an error if the account update fails.
	UpdateMetadata(ctx context.Context, userID string, fields map[string]interface{}) error
}
