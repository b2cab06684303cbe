// 生成摘要：实现回测服务的 MySQL 仓储层，基于 GORM。
// 变更说明：从旧的 infrastructure 目录迁移至 persistence/mysql；账户快照的
// 持仓/委托/成交/资产曲线序列化为 JSON blob 存放在单行中，落盘/恢复以整个
// 账户为最小单位（spec §6），而非拆分成多张关系表。

package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
	"gorm.io/gorm"
)

// accountSnapshotPO 是 domain.Snapshot 的持久化表示。
type accountSnapshotPO struct {
	Name       string `gorm:"type:varchar(128);primaryKey"`
	Token      string `gorm:"type:varchar(128);index"`
	Payload    string `gorm:"type:longtext"`
	UpdatedAt  time.Time
}

// TableName 指定表名。
func (accountSnapshotPO) TableName() string {
	return "backtest_account_snapshots"
}

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository 创建基于 MySQL 的 domain.SnapshotRepository 实现。
func NewSnapshotRepository(db *gorm.DB) domain.SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Save(ctx context.Context, snap domain.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return domain.ErrPersistence.WithDetail("marshal snapshot: %v", err)
	}

	po := accountSnapshotPO{
		Name:      snap.Name,
		Token:     snap.Token,
		Payload:   string(payload),
		UpdatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Save(&po).Error; err != nil {
		return domain.ErrPersistence.WithDetail("%v", err)
	}
	return nil
}

func (r *snapshotRepository) Load(ctx context.Context, name string) (*domain.Snapshot, error) {
	var po accountSnapshotPO
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrPersistence.WithDetail("%v", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(po.Payload), &snap); err != nil {
		return nil, domain.ErrPersistence.WithDetail("unmarshal snapshot: %v", err)
	}
	return &snap, nil
}

func (r *snapshotRepository) Delete(ctx context.Context, name string) error {
	err := r.db.WithContext(ctx).Where("name = ?", name).Delete(&accountSnapshotPO{}).Error
	if err != nil {
		return domain.ErrPersistence.WithDetail("%v", err)
	}
	return nil
}

func (r *snapshotRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&accountSnapshotPO{}).Pluck("name", &names).Error
	if err != nil {
		return nil, domain.ErrPersistence.WithDetail("%v", err)
	}
	return names, nil
}
