package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/rental-marketplace/internal/config"
)

// recorder tees the response to the client and into buf. Once the body
// grows past limit the copy stops and the response is not cached.
type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	limit  int
	over   bool
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.over {
		if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
			r.over = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// cachedResponse is what one cache entry holds. Only the content type
// is kept from the headers; everything else is recomputed on replay.
type cachedResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

var errBadEntry = errors.New("cache: malformed entry")

// MarshalBinary lays the entry out as
// uvarint(status) uvarint(len(ct)) ct body.
func (r cachedResponse) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 2*binary.MaxVarintLen32+len(r.ContentType)+len(r.Body))
	out = binary.AppendUvarint(out, uint64(r.Status))
	out = binary.AppendUvarint(out, uint64(len(r.ContentType)))
	out = append(out, r.ContentType...)
	return append(out, r.Body...), nil
}

func (r *cachedResponse) UnmarshalBinary(bs []byte) error {
	status, n := binary.Uvarint(bs)
	if n <= 0 || status < 100 || status > 599 {
		return errBadEntry
	}
	bs = bs[n:]
	ctLen, n := binary.Uvarint(bs)
	if n <= 0 || ctLen > uint64(len(bs)-n) {
		return errBadEntry
	}
	bs = bs[n:]
	r.Status = int(status)
	r.ContentType = string(bs[:ctLen])
	r.Body = bs[ctLen:]
	return nil
}

// generationKey holds a counter that is part of every cache key.
// Bumping it orphans all cached listing responses at once; they then
// expire by TTL.
func generationKey(cfg config.CacheConfig) string { return cfg.Prefix + ":gen" }

// cacheKeyFrom builds the key from the generation, the caller and the
// request URI. The caller is part of the key because the visible set of
// listings depends on who asks.
func cacheKeyFrom(cfg config.CacheConfig, gen int64, c echo.Context) string {
	a := ActorFrom(c)
	who := fmt.Sprintf("u:%d:r:%s:s:%t:su:%t", a.ID, a.Role, a.Staff, a.Superuser)
	sum := sha1.Sum([]byte(who + "|" + c.Request().URL.RequestURI()))
	return fmt.Sprintf("%s:%d:%x", cfg.Prefix, gen, sum)
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// ListingCache caches successful GET responses of the listing and
// review read endpoints in Redis. It must run after the auth middleware
// so the key reflects the caller. Redis errors degrade to an uncached
// request.
func ListingCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, err := rdb.Get(ctx, generationKey(cfg)).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return next(c)
			}
			key := cacheKeyFrom(cfg, gen, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if hit.UnmarshalBinary(bs) == nil {
					res := c.Response()
					if hit.ContentType != "" {
						res.Header().Set(echo.HeaderContentType, hit.ContentType)
					}
					res.Header().Set("X-Cache", "HIT")
					res.WriteHeader(hit.Status)
					_, err := res.Write(hit.Body)
					return err
				}
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.over {
				return nil
			}
			entry, _ := cachedResponse{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			}.MarshalBinary()
			if err := rdb.Set(context.WithoutCancel(ctx), key, entry, ttl).Err(); err != nil {
				log.Printf("cache: store %s: %v", c.Request().URL.Path, err)
			}
			return nil
		}
	}
}

// InvalidateListings bumps the cache generation after every successful
// write it wraps. Listing responses embed ratings, so review writes are
// wrapped too.
func InvalidateListings(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if c.Request().Method == http.MethodGet || c.Response().Status >= http.StatusBadRequest {
				return err
			}
			if ierr := rdb.Incr(context.WithoutCancel(c.Request().Context()), generationKey(cfg)).Err(); ierr != nil {
				log.Printf("cache: invalidate after %s %s: %v", c.Request().Method, c.Path(), ierr)
			}
			return err
		}
	}
}

// CacheGeneration reports the current generation, for tests and health
// output.
func CacheGeneration(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) (int64, error) {
	s, err := rdb.Get(ctx, generationKey(cfg)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}
