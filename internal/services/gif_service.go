package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-discord-bot/internal/repo"
)

// GifService serves random links from the gif pool and accepts new ones.
type GifService struct {
	Store repo.GifStore
	Log   zerolog.Logger
}

// NewGifService constructs a GifService over store.
func NewGifService(store repo.GifStore, logger zerolog.Logger) *GifService {
	return &GifService{
		Store: store,
		Log:   logger.With().Str("component", "gif_service").Logger(),
	}
}

// Random returns one link from the pool, or ErrNoGifs when it is empty.
func (s *GifService) Random(ctx context.Context) (string, error) {
	tr := otel.Tracer("services/GifService")
	ctx, span := tr.Start(ctx, "Random")
	defer span.End()

	u, ok, err := s.Store.Random(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("random gif")
		return "", err
	}
	if !ok {
		return "", ErrNoGifs
	}
	return u, nil
}

// Add validates rawURL and appends it to the pool, returning the new pool
// size. Duplicates are reported as ErrDuplicateGif.
func (s *GifService) Add(ctx context.Context, rawURL string) (int, error) {
	clean := strings.TrimSpace(rawURL)
	tr := otel.Tracer("services/GifService")
	ctx, span := tr.Start(ctx, "Add", trace.WithAttributes(attribute.String("gif.url", clean)))
	defer span.End()

	if !ValidGifURL(clean) {
		return 0, ErrInvalidGifURL
	}
	added, total, err := s.Store.Add(ctx, clean)
	if err != nil {
		s.Log.Error().Err(err).Msg("add gif")
		return 0, err
	}
	if !added {
		return total, ErrDuplicateGif
	}
	s.Log.Info().Int("total", total).Msg("gif added")
	return total, nil
}

// ValidGifURL reports whether s is an absolute http or https URL with a host.
func ValidGifURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
