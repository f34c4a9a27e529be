package postgres

import "github.com/tinoosan/fundledger/internal/storage"

var (
    _ storage.Store = (*Store)(nil)
    _ storage.Tx    = txQueries{}
)
