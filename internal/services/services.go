// package services defines interface Repository for the remote object store audited by a run
package services

import (
	"context"
	"iter"
	"time"

	"github.com/desertthunder/fixity/internal/models"
)

// Repository is the narrow set of remote operations a checksum audit needs.
//
// A Repository value is not assumed to be safe for concurrent use: each worker obtains its own from a [SessionFactory].
type Repository interface {
	// GetObject fetches an object's profile. Returns [shared.ErrObjectNotFound] when the object does not exist
	// and [shared.ErrUnauthorized] when it is not accessible.
	GetObject(ctx context.Context, pid string) (*models.ObjectProfile, error)

	// ListDatastreams returns the datastream ids of an object in repository order.
	ListDatastreams(ctx context.Context, pid string) ([]string, error)

	// GetDatastream fetches a datastream profile, as of the version created at asOf when asOf is non-zero.
	GetDatastream(ctx context.Context, pid, dsid string, asOf time.Time) (*models.DatastreamProfile, error)

	// DatastreamHistory lists every stored version of a datastream.
	// Failures wrap [shared.ErrHistoryUnavailable].
	DatastreamHistory(ctx context.Context, pid, dsid string) ([]models.DatastreamVersion, error)

	// ValidateChecksum asks the repository to recompute the checksum of the datastream content
	// (pinned to asOf when non-zero) and compare it with the stored value.
	ValidateChecksum(ctx context.Context, pid, dsid string, asOf time.Time) (bool, error)

	// SetChecksumType sets the checksum algorithm of a datastream and saves it,
	// which makes the repository compute and store a new checksum. Failures wrap [shared.ErrSaveFailed].
	SetChecksumType(ctx context.Context, pid, dsid, checksumType, logMessage string) error

	// DiscoverObjects lazily yields every object pid, optionally restricted to a content model.
	DiscoverObjects(ctx context.Context, contentModel string) iter.Seq2[string, error]
}

// SessionFactory opens an independent [Repository] session.
type SessionFactory func() (Repository, error)
