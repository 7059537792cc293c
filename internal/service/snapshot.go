package service

import (
	"context"

	"github.com/oyasumi-space/antenna-fanout/internal/repository"
)

// followSnapshot 用关注表实现 RelationSnapshot（最终一致读）
type followSnapshot struct {
	repo repository.FollowRepository
}

func NewFollowSnapshot(repo repository.FollowRepository) RelationSnapshot {
	return &followSnapshot{repo: repo}
}

func (s *followSnapshot) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return s.repo.Exists(ctx, followerID, followeeID)
}
