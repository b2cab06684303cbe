package domain

import "context"

// SnapshotRepository 持久化账户快照，支撑 save/load 操作（spec §6）。
// 具体实现见 infrastructure/persistence/mysql。
type SnapshotRepository interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, name string) (*Snapshot, error)
	Delete(ctx context.Context, name string) error
	ListNames(ctx context.Context) ([]string, error)
}
