package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

// AntennaRepository 返回粗筛后的候选天线；内容级谓词由匹配引擎执行。
// 粗筛条件：available、未过期、owner 在活跃窗口内、按可见性收敛受众
// （private 仅限关注作者的 owner，limited 仅限被提及的 owner）。
type AntennaRepository interface {
	Create(ctx context.Context, antenna *model.Antenna) error
	Get(ctx context.Context, id string) (*model.Antenna, error)
	Update(ctx context.Context, antenna *model.Antenna) error
	Delete(ctx context.Context, id, accountID string) error
	ListByAccount(ctx context.Context, accountID string) ([]*model.Antenna, error)

	Candidates(ctx context.Context, status *model.Status, activeAfter time.Time) ([]*model.Antenna, error)
	STLCandidates(ctx context.Context, activeAfter time.Time) ([]*model.Antenna, error)
	LTLCandidates(ctx context.Context, activeAfter time.Time) ([]*model.Antenna, error)
}

type antennaRepository struct{ db *gorm.DB }

func NewAntennaRepository(db *gorm.DB) AntennaRepository { return &antennaRepository{db: db} }

func (r *antennaRepository) Create(ctx context.Context, antenna *model.Antenna) error {
	if antenna.ID == "" {
		antenna.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(antenna).Error
}

func (r *antennaRepository) Get(ctx context.Context, id string) (*model.Antenna, error) {
	var a model.Antenna
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *antennaRepository) Update(ctx context.Context, antenna *model.Antenna) error {
	return r.db.WithContext(ctx).Save(antenna).Error
}

func (r *antennaRepository) Delete(ctx context.Context, id, accountID string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		Delete(&model.Antenna{}).Error
}

func (r *antennaRepository) ListByAccount(ctx context.Context, accountID string) ([]*model.Antenna, error) {
	var res []*model.Antenna
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&res).Error
	return res, err
}

func (r *antennaRepository) active(ctx context.Context, activeAfter time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Antenna{}).
		Joins("JOIN accounts ON accounts.id = antennas.account_id").
		Where("antennas.available = ?", true).
		Where("antennas.expires_at IS NULL OR antennas.expires_at > ?", time.Now()).
		Where("accounts.last_active_at > ?", activeAfter)
}

func (r *antennaRepository) Candidates(ctx context.Context, status *model.Status, activeAfter time.Time) ([]*model.Antenna, error) {
	q := r.active(ctx, activeAfter).
		Where("antennas.stl = ? AND antennas.ltl = ?", false, false)

	// 受众收敛：private 仅作者的粉丝，limited 仅被提及账号
	switch status.Visibility {
	case model.VisibilityPrivate:
		q = q.Where("antennas.account_id IN (SELECT fan_id FROM fans WHERE account_id = ?)", status.AccountID)
	case model.VisibilityLimited:
		mentioned := status.MentionedAccountIDs()
		if len(mentioned) == 0 {
			return nil, nil
		}
		q = q.Where("antennas.account_id IN ?", mentioned)
	}

	var res []*model.Antenna
	err := q.Find(&res).Error
	return res, err
}

func (r *antennaRepository) STLCandidates(ctx context.Context, activeAfter time.Time) ([]*model.Antenna, error) {
	var res []*model.Antenna
	err := r.active(ctx, activeAfter).Where("antennas.stl = ?", true).Find(&res).Error
	return res, err
}

func (r *antennaRepository) LTLCandidates(ctx context.Context, activeAfter time.Time) ([]*model.Antenna, error) {
	var res []*model.Antenna
	err := r.active(ctx, activeAfter).Where("antennas.ltl = ?", true).Find(&res).Error
	return res, err
}
