package processing

import (
	"guild_stats/internal/cache"
	"guild_stats/internal/sheets"
	"guild_stats/internal/store"
	"guild_stats/internal/warehouse"
)

// Compile-time interface compliance checks
// These will cause compilation errors if the types don't implement the interfaces

var (
	_ WarehouseExporterInterface    = (*warehouse.BigQueryExporter)(nil)
	_ WorkbookReaderInterface       = (*sheets.WorkbookReader)(nil)
	_ LeaderboardPublisherInterface = (*sheets.LeaderboardManager)(nil)
	_ sheets.SheetsAPI              = (*sheets.Client)(nil)
	_ store.DocumentStore           = (*store.FirestoreStore)(nil)
	_ store.DocumentStore           = (*store.MemoryStore)(nil)
	_ cache.Cache                   = (*cache.MemoryCache)(nil)
	_ cache.Cache                   = (*cache.RedisCache)(nil)
)
