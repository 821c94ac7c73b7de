package tasks

import (
	"context"
	"iter"

	"github.com/desertthunder/fixity/internal/services"
	"github.com/desertthunder/fixity/internal/shared"
)

// Source supplies the object ids a run enumerates, in order.
type Source struct {
	PIDs  iter.Seq2[string, error]
	Total int // Number of ids when known up front; zero for a live cursor
}

// IDSource enumerates explicit ids, dropping blanks and repeats.
func IDSource(ids []string) Source {
	unique := shared.UniqueIDs(ids)
	return Source{
		PIDs: func(yield func(string, error) bool) {
			for _, id := range unique {
				if !yield(id, nil) {
					return
				}
			}
		},
		Total: len(unique),
	}
}

// FileSource enumerates the ids listed in path, one per line ("-" reads standard input).
func FileSource(path string) (Source, error) {
	ids, err := shared.ReadIDFile(path)
	if err != nil {
		return Source{}, err
	}
	return IDSource(ids), nil
}

// DiscoverySource enumerates every object in the repository, optionally restricted to a content model.
func DiscoverySource(ctx context.Context, repo services.Repository, contentModel string) Source {
	return Source{PIDs: repo.DiscoverObjects(ctx, contentModel)}
}

// ResolveSource picks explicit ids first, then an id file, then repository discovery.
func ResolveSource(ctx context.Context, ids []string, file string, sessions services.SessionFactory, contentModel string) (Source, error) {
	if len(shared.UniqueIDs(ids)) > 0 {
		return IDSource(ids), nil
	}
	if file != "" {
		return FileSource(file)
	}

	repo, err := sessions()
	if err != nil {
		return Source{}, err
	}
	return DiscoverySource(ctx, repo, contentModel), nil
}
