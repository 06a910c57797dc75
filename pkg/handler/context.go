package handler

// DI for all handlers and models alike.

import (
	"github.com/nasasaki/LAPIS/pkg/cache"
	"github.com/nasasaki/LAPIS/pkg/memdb"
	"github.com/nasasaki/LAPIS/pkg/model"
)

type DBContext struct {
	Snapshots *memdb.Manager
	Samples   *model.SampleService
	Cache     *cache.ResultCache
}

func NewDBContext(m *memdb.Manager, c *cache.ResultCache) *DBContext {
	return &DBContext{
		Snapshots: m,
		Samples:   model.NewSampleService(m),
		Cache:     c,
	}
}
