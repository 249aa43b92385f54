// Package api serves DXCC and WPX lookups over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user00265/hamtools/internal/callsign"
	"github.com/user00265/hamtools/internal/ctydb"
	"github.com/user00265/hamtools/internal/dxcc"
	"github.com/user00265/hamtools/internal/logging"
	"github.com/user00265/hamtools/internal/metrics"
	"github.com/user00265/hamtools/internal/wpx"
	"github.com/user00265/hamtools/version"
)

// Database is the loaded country database the routes read from.
type Database interface {
	Resolver() *dxcc.Resolver
	Stats() ctydb.Stats
}

// HealthReporter describes an optional backing service for /stats.
type HealthReporter interface {
	HealthStatus(ctx context.Context) string
}

// DXCCResult is a resolved callsign with its flag.
type DXCCResult struct {
	dxcc.Resolved `yaml:",inline"`
	Flag          string `json:"flag,omitempty" yaml:"flag,omitempty"`
}

// LookupResult combines both lookups. DXCC is null when no entity matched
// and WPX is empty when no prefix could be derived.
type LookupResult struct {
	Callsign string      `json:"callsign" yaml:"callsign"`
	DXCC     *DXCCResult `json:"dxcc" yaml:"dxcc"`
	WPX      string      `json:"wpx" yaml:"wpx"`
}

// NewRouter returns a gin engine with path normalization and request
// logging. SetupRoutes mounts the API on it.
func NewRouter() *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	// Collapse repeated slashes and drop a trailing slash before routing.
	router.Use(func(c *gin.Context) {
		path := c.Request.URL.Path
		for strings.Contains(path, "//") {
			path = strings.ReplaceAll(path, "//", "/")
		}
		if len(path) > 1 && strings.HasSuffix(path, "/") {
			path = strings.TrimSuffix(path, "/")
		}
		if path != c.Request.URL.Path {
			c.Request.URL.Path = path
			router.HandleContext(c)
			c.Abort()
			return
		}
		c.Next()
	})
	router.Use(logging.GinLogger(), logging.GinRecovery())
	return router
}

// SetupRoutes registers the API on r. redis and met may be nil.
func SetupRoutes(r *gin.RouterGroup, db Database, redis HealthReporter, met *metrics.Metrics) {
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	if met != nil {
		r.GET("/metrics", gin.WrapH(met.Handler()))
	}

	// GET /dxcc/*callsign - DXCC entity of a callsign. Portable calls keep
	// their slashes: /dxcc/W1AW/KH6.
	r.GET("/dxcc/*callsign", func(c *gin.Context) {
		res, ok := resolverFor(c, db)
		if !ok {
			return
		}
		call, ok := callsignParam(c)
		if !ok {
			return
		}
		start := time.Now()
		out, err := resolve(res, call)
		met.ObserveLookup("dxcc", result(err), time.Since(start))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"callsign": call, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"callsign": call, "dxcc": out})
	})

	// GET /wpx/*callsign - WPX prefix of a callsign.
	r.GET("/wpx/*callsign", func(c *gin.Context) {
		call, ok := callsignParam(c)
		if !ok {
			return
		}
		start := time.Now()
		prefix, err := wpx.Derive(call)
		met.ObserveLookup("wpx", result(err), time.Since(start))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"callsign": call, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"callsign": call, "prefix": prefix})
	})

	// GET /lookup/*callsign - DXCC entity and WPX prefix together.
	r.GET("/lookup/*callsign", func(c *gin.Context) {
		res, ok := resolverFor(c, db)
		if !ok {
			return
		}
		call, ok := callsignParam(c)
		if !ok {
			return
		}
		start := time.Now()
		out := Lookup(res, call)
		lookupResult := "ok"
		if out.DXCC == nil {
			lookupResult = "no_match"
		}
		met.ObserveLookup("lookup", lookupResult, time.Since(start))
		c.JSON(http.StatusOK, out)
	})

	// GET /entities - every entity in table order.
	r.GET("/entities", func(c *gin.Context) {
		res, ok := resolverFor(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, res.Table().Entities())
	})

	// GET /stats - what is loaded and where it came from.
	r.GET("/stats", func(c *gin.Context) {
		redisStatus := "disabled"
		if redis != nil {
			redisStatus = redis.HealthStatus(c.Request.Context())
		}
		c.JSON(http.StatusOK, gin.H{
			"database": db.Stats(),
			"redis":    redisStatus,
			"version":  version.ProjectVersion,
		})
	})
}

// Lookup resolves call in both lookups. It is used by the one-shot CLI as
// well as the /lookup route.
func Lookup(res *dxcc.Resolver, call string) LookupResult {
	out := LookupResult{Callsign: call}
	if r, err := resolve(res, call); err == nil {
		out.DXCC = &r
	} else if !errors.Is(err, dxcc.ErrNoMatch) {
		logging.Warn("DXCC lookup for %s failed: %v", call, err)
	}
	if p, err := wpx.Derive(call); err == nil {
		out.WPX = p
	}
	return out
}

// result labels a lookup error for metrics.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dxcc.ErrNoMatch):
		return "no_match"
	case errors.Is(err, wpx.ErrInvalidCallsign):
		return "invalid"
	}
	return "error"
}

func resolve(res *dxcc.Resolver, call string) (DXCCResult, error) {
	r, err := res.Resolve(call)
	if err != nil {
		return DXCCResult{}, err
	}
	return DXCCResult{Resolved: r, Flag: dxcc.Flag(r.Prefix)}, nil
}

func resolverFor(c *gin.Context, db Database) (*dxcc.Resolver, bool) {
	res := db.Resolver()
	if res == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ctydb.ErrNotLoaded.Error()})
		return nil, false
	}
	return res, true
}

func callsignParam(c *gin.Context) (string, bool) {
	call := callsign.Normalize(strings.Trim(c.Param("callsign"), "/"))
	if call == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "callsign is required"})
		return "", false
	}
	return call, true
}
