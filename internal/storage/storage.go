package storage

import "ammcore/internal/model"

// Journal is an append-only log of operations.
type Journal interface {
	Append(ops []model.OpRecord) error
	ReadAll() ([]model.OpRecord, error)
}
